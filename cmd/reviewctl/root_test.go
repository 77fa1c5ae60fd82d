package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestInviteSignAndVerify(t *testing.T) {
	t.Setenv("REVIEW_INVITE_SECRET", testSecret)

	out, err := execute(t, "", "invite", "sign", "--account", "acct-1", "--product", "prod-1", "--slug", "Linen Shirt", "--ttl", "1h")
	require.NoError(t, err)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	require.NotEmpty(t, issued.Token)

	out, err = execute(t, "", "invite", "verify", issued.Token)
	require.NoError(t, err)
	assert.Contains(t, out, `"accountId": "acct-1"`)
	assert.Contains(t, out, `"slug": "linen-shirt"`)
}

func TestInviteVerify_Rejected(t *testing.T) {
	t.Setenv("REVIEW_INVITE_SECRET", testSecret)

	_, err := execute(t, "", "invite", "verify", "not-a-token")
	assert.ErrorContains(t, err, "token rejected")
}

func TestInviteSign_RequiresSecret(t *testing.T) {
	t.Setenv("REVIEW_INVITE_SECRET", "")

	_, err := execute(t, "", "invite", "sign", "--account", "a", "--product", "p", "--slug", "s")
	assert.ErrorContains(t, err, "REVIEW_INVITE_SECRET is not set")
}

func TestAdminHashPassword(t *testing.T) {
	out, err := execute(t, "s3cret-pass\n", "admin", "hash-password")
	require.NoError(t, err)

	assert.NoError(t, auth.CheckPassword(strings.TrimSpace(out), "s3cret-pass"))

	_, err = execute(t, "\n", "admin", "hash-password")
	assert.ErrorContains(t, err, "must not be empty")
}
