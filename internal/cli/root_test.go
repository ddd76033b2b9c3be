package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/core/services"
	"streampay/internal/infrastructure/repositories/memory"
	"streampay/pkg/config"
)

// run executes escrowctl against ledger with a config path that does not
// exist, so defaults apply.
func run(t *testing.T, ledger ports.Ledger, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		OpenLedger: func(*config.Config, *zap.SugaredLogger) (ports.Ledger, func() error, error) {
			return ledger, func() error { return nil }, nil
		},
	}
	cmd := newRootCommand(opts)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want map[string]string
	}{
		{
			name: "stream by id",
			args: []string{"derive", "id", "100", "100", "1"},
			want: map[string]string{
				"stream":   "E4Z5LBdorwUXea3KYVuHTzFNJDsbcSewCbUyich4YEEi",
				"treasury": "AJHa6hQ4gwaxUwiiPHXWdQFTi5ftkxNUjbYbcByXscPf",
			},
		},
		{
			name: "group",
			args: []string{"derive", "group", "26"},
			want: map[string]string{"group": "RAkjrwrDYLRCFMz9R1ZckzSNsuJRNwRT3bkRWUjdjD6"},
		},
		{
			name: "treasury",
			args: []string{"derive", "treasury"},
			want: map[string]string{"treasury": "AJHa6hQ4gwaxUwiiPHXWdQFTi5ftkxNUjbYbcByXscPf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, nil, append([]string{"--format", "json"}, tt.args...)...)
			require.NoError(t, err)

			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}

func TestDerive_NamedStreamText(t *testing.T) {
	out, err := run(t, nil, "derive", "name", "radio", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "key:")
	assert.Contains(t, out, "name:radio/level:2")
	assert.Contains(t, out, "holder:")
	assert.NotContains(t, out, "group:")
}

func TestDerive_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"level zero", []string{"derive", "id", "1", "1", "0"}, "level"},
		{"level too large", []string{"derive", "name", "x", "256"}, "level"},
		{"bad group id", []string{"derive", "group", "abc"}, "group-id"},
		{"name too long", []string{"derive", "name", strings.Repeat("n", 33), "1"}, "invalid stream key"},
		{"bad program id", []string{"--program-id", "0OIl", "derive", "treasury"}, "program id"},
		{"bad format", []string{"--format", "yaml", "derive", "treasury"}, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, nil, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestKeygen(t *testing.T) {
	out, err := run(t, nil, "--format", "json", "keygen")
	require.NoError(t, err)

	var got keygenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	addr, err := domain.ParseAddress(got.Address)
	require.NoError(t, err)
	priv, err := base58.Decode(got.PrivateKey)
	require.NoError(t, err)
	require.Len(t, priv, 64)
	assert.Equal(t, addr[:], priv[32:], "ed25519 private keys carry the public key in their second half")
}

func TestToken(t *testing.T) {
	signer := domain.MustParseAddress("RAkjrwrDYLRCFMz9R1ZckzSNsuJRNwRT3bkRWUjdjD6")

	_, err := run(t, nil, "token", signer.String())
	require.ErrorContains(t, err, "placeholder")

	const secret = "0123456789abcdef0123456789abcdef"
	t.Setenv("STREAMPAY_JWT_SECRET", secret)
	out, err := run(t, nil, "--format", "json", "token", signer.String())
	require.NoError(t, err)

	var got tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	cfg := config.DefaultConfig()
	auth := services.NewAuthService(secret, time.Minute, time.Hour)
	claims, err := auth.ValidateToken(got.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signer, claims.Signer)
	_, err = auth.ValidateRefreshToken(got.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int(cfg.Auth.AccessTokenTTL.Seconds()), got.ExpiresIn)

	_, err = run(t, nil, "token", "not-an-address")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestFund(t *testing.T) {
	ledger := memory.NewMemoryLedger()
	addr := domain.MustParseAddress("9jLkNAaW9E47LQMHvjohy2uAAyr1331bAxgJKFRU7wF6")

	_, err := run(t, ledger, "fund", addr.String(), "250")
	require.NoError(t, err)
	out, err := run(t, ledger, "--format", "json", "fund", addr.String(), "50")
	require.NoError(t, err)

	var got fundOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint64(300), got.Balance)

	_, err = run(t, ledger, "fund", addr.String(), "0")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// group 26's record address
	_, err = run(t, ledger, "fund", "RAkjrwrDYLRCFMz9R1ZckzSNsuJRNwRT3bkRWUjdjD6", "5")
	assert.ErrorIs(t, err, domain.ErrOffCurveAddress)
}

func TestSnapshotCommands(t *testing.T) {
	ledger := memory.NewMemoryLedger()
	addr := domain.MustParseAddress("9jLkNAaW9E47LQMHvjohy2uAAyr1331bAxgJKFRU7wF6")
	require.NoError(t, ledger.Fund(context.Background(), addr, 700))
	dir := t.TempDir()

	out, err := run(t, ledger, "--format", "json", "snapshot", "create", "--dir", dir)
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.NotEmpty(t, created["name"])

	out, err = run(t, ledger, "--format", "json", "snapshot", "list", "--dir", dir)
	require.NoError(t, err)
	var listed snapshotListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, []string{created["name"]}, listed.Snapshots)

	require.NoError(t, ledger.Fund(context.Background(), addr, 1))

	out, err = run(t, ledger, "snapshot", "restore", "--dir", dir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry_run:")
	acct, err := ledger.Account(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(701), acct.Balance)

	_, err = run(t, ledger, "snapshot", "restore", created["name"], "--dir", dir)
	require.NoError(t, err)
	acct, err = ledger.Account(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), acct.Balance)

	_, err = run(t, ledger, "snapshot", "restore", "--dir", t.TempDir())
	assert.Error(t, err)
}
