package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/repository/memory"
)

func resetTokenFromMail(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "https://") {
			continue
		}
		u, err := url.Parse(line)
		require.NoError(t, err)
		return u.Query().Get("token")
	}
	t.Fatalf("no reset link in mail body:\n%s", body)
	return ""
}

func TestPasswordResetHappyPath(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	ctx := context.Background()
	user := h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)

	require.NoError(t, h.reset.RequestReset(ctx, "ana@petclub.io"))

	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTicket)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), stored.ResetTicket.ExpiresAt, 5*time.Second)

	msgs := h.mailer.messages()
	require.Len(t, msgs, 1)
	token := resetTokenFromMail(t, msgs[0].TextBody)
	assert.Equal(t, stored.ResetTicket.Token, token)

	require.NoError(t, h.reset.Reset(ctx, "ana@petclub.io", "a-brand-new-secret", token))

	after, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ResetTicket, "ticket is single use")

	_, err = h.auth.SignIn(ctx, "ana@petclub.io", "a-brand-new-secret")
	require.NoError(t, err)
	_, err = h.auth.SignIn(ctx, "ana@petclub.io", strongPassword)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	err = h.reset.Reset(ctx, "ana@petclub.io", "another-new-secret", token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "request expired", domain.PublicMessage(err, ""))
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))

	err := h.reset.RequestReset(context.Background(), "nobody@petclub.io")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, h.mailer.messages())
}

func TestPasswordResetExpiredTicketIsCleared(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	ctx := context.Background()
	user := h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)

	issued := time.Now()
	h.reset.now = func() time.Time { return issued }
	require.NoError(t, h.reset.RequestReset(ctx, "ana@petclub.io"))
	token := resetTokenFromMail(t, h.mailer.messages()[0].TextBody)

	h.reset.now = func() time.Time { return issued.Add(5*time.Minute + time.Second) }
	err := h.reset.Reset(ctx, "ana@petclub.io", "a-brand-new-secret", token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "request expired", domain.PublicMessage(err, ""))

	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTicket)

	_, err = h.auth.SignIn(ctx, "ana@petclub.io", strongPassword)
	require.NoError(t, err, "password must be unchanged")
}

func TestPasswordResetWrongTokenKeepsTicket(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	ctx := context.Background()
	user := h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)

	require.NoError(t, h.reset.RequestReset(ctx, "ana@petclub.io"))

	err := h.reset.Reset(ctx, "ana@petclub.io", "a-brand-new-secret", "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ResetTicket)
}

func TestPasswordResetWithoutRequest(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)

	err := h.reset.Reset(context.Background(), "ana@petclub.io", "a-brand-new-secret", "anything")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "request expired", domain.PublicMessage(err, ""))
}

func TestPasswordResetPolicyViolation(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	ctx := context.Background()
	h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)

	require.NoError(t, h.reset.RequestReset(ctx, "ana@petclub.io"))
	token := resetTokenFromMail(t, h.mailer.messages()[0].TextBody)

	err := h.reset.Reset(ctx, "ana@petclub.io", "short", token)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPasswordResetMailFailureKeepsTicket(t *testing.T) {
	h := newHarness(t, withKV(memory.NewKeyValueStore(0)))
	ctx := context.Background()
	user := h.seedUser(t, "ana@petclub.io", strongPassword, domain.RoleUser)
	h.mailer.err = errors.New("smtp down")

	err := h.reset.RequestReset(ctx, "ana@petclub.io")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)

	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ResetTicket)
}
