package http

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"streampay/internal/core/domain"
	"streampay/pkg/errors"
	"streampay/pkg/validation"
)

// streamKeyRequest selects a stream either by name or by group and stream id.
type streamKeyRequest struct {
	GroupID  *uint64 `json:"group_id"`
	StreamID *uint64 `json:"stream_id"`
	Name     string  `json:"name"`
	Level    int     `json:"level"`
}

func (r streamKeyRequest) toKey() (domain.StreamKey, error) {
	if err := validation.ValidateLevel(r.Level); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	level := uint8(r.Level)

	if r.Name != "" {
		if r.GroupID != nil || r.StreamID != nil {
			return nil, errors.NewInvalidInputError("name cannot be combined with group_id or stream_id")
		}
		if err := validation.ValidateStreamName(r.Name); err != nil {
			return nil, errors.NewInvalidInputError(err.Error())
		}
		return domain.ByName{Name: r.Name, Level: level}, nil
	}
	if r.GroupID == nil || r.StreamID == nil {
		return nil, errors.NewInvalidInputError("either name or both group_id and stream_id are required")
	}
	return domain.ByID{GroupID: *r.GroupID, StreamID: *r.StreamID, Level: level}, nil
}

// keyFromPath reads a key from /id/:group_id/:stream_id/:level or
// /name/:name/:level style routes.
func keyFromPath(c *gin.Context) (domain.StreamKey, error) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		return nil, errors.NewInvalidInputError("level must be a number")
	}
	req := streamKeyRequest{Name: c.Param("name"), Level: level}
	if req.Name == "" {
		groupID, err := parseUint(c.Param("group_id"), "group_id")
		if err != nil {
			return nil, err
		}
		streamID, err := parseUint(c.Param("stream_id"), "stream_id")
		if err != nil {
			return nil, err
		}
		req.GroupID, req.StreamID = &groupID, &streamID
	}
	return req.toKey()
}

func parseUint(s, field string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidInputError(fmt.Sprintf("%s must be an unsigned integer", field))
	}
	return v, nil
}

func parseAddress(s, field string) (domain.Address, error) {
	if err := validation.ValidateAddress(s, field); err != nil {
		return domain.Address{}, errors.NewInvalidInputError(err.Error())
	}
	return domain.ParseAddress(s)
}

type streamKeyResponse struct {
	Variant  string `json:"variant"`
	GroupID  uint64 `json:"group_id,omitempty"`
	StreamID uint64 `json:"stream_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Level    uint8  `json:"level"`
}

func newStreamKeyResponse(key domain.StreamKey) streamKeyResponse {
	switch k := key.(type) {
	case domain.ByID:
		return streamKeyResponse{Variant: "id", GroupID: k.GroupID, StreamID: k.StreamID, Level: k.Level}
	case domain.ByName:
		return streamKeyResponse{Variant: "name", Name: k.Name, Level: k.Level}
	}
	return streamKeyResponse{}
}

type groupResponse struct {
	GroupID  uint64 `json:"group_id"`
	Creator  string `json:"creator"`
	Rate     uint64 `json:"rate"`
	Discount bool   `json:"discount"`
}

func newGroupResponse(g *domain.GroupRecord) groupResponse {
	return groupResponse{
		GroupID:  g.GroupID,
		Creator:  g.Creator.String(),
		Rate:     g.Rate,
		Discount: g.Discount,
	}
}

type streamResponse struct {
	Key           streamKeyResponse `json:"key"`
	Payer         string            `json:"payer,omitempty"`
	Recipient     string            `json:"recipient"`
	Until         uint64            `json:"until"`
	LastWithdrawn uint64            `json:"last_withdrawn"`
	Rate          uint64            `json:"rate"`
}

func newStreamResponse(s *domain.StreamRecord) streamResponse {
	resp := streamResponse{
		Key:           newStreamKeyResponse(s.Key),
		Recipient:     s.Recipient.String(),
		Until:         s.Until,
		LastWithdrawn: s.LastWithdrawn,
		Rate:          s.Rate,
	}
	if !s.Payer.IsZero() {
		resp.Payer = s.Payer.String()
	}
	return resp
}

type streamViewResponse struct {
	Stream        streamResponse `json:"stream"`
	Address       string         `json:"address"`
	HolderAddress string         `json:"holder_address"`
	HolderBalance uint64         `json:"holder_balance"`
	AccruedValue  uint64         `json:"accrued_value"`
	Unearned      uint64         `json:"unearned"`
	Now           uint64         `json:"now"`
}

func newStreamViewResponse(v *domain.StreamView) streamViewResponse {
	return streamViewResponse{
		Stream:        newStreamResponse(v.Stream),
		Address:       v.Address.String(),
		HolderAddress: v.HolderAddress.String(),
		HolderBalance: v.HolderBalance,
		AccruedValue:  v.AccruedValue,
		Unearned:      v.Unearned,
		Now:           v.Now,
	}
}

type treasuryResponse struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type addressesResponse struct {
	Stream   string `json:"stream"`
	Holder   string `json:"holder"`
	Group    string `json:"group,omitempty"`
	Treasury string `json:"treasury"`
}

func newAddressesResponse(a *domain.StreamAddresses) addressesResponse {
	resp := addressesResponse{
		Stream:   a.Stream.String(),
		Holder:   a.Holder.String(),
		Treasury: a.Treasury.String(),
	}
	if a.Group != nil {
		resp.Group = a.Group.String()
	}
	return resp
}
