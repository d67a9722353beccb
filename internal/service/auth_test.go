package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/repository"
)

const testPassword = "correct horse battery"

func invitedWithPassword(t *testing.T, env *testEnv, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	user, err := env.auth.Invite(ctx, Invite{Email: email, Name: "Client"})
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if err := env.auth.UpdatePassword(ctx, user.ID, testPassword); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	return user
}

func TestSignInWithPassword(t *testing.T) {
	env := newTestEnv(t)
	user := invitedWithPassword(t, env, "client@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid credentials", "client@example.com", testPassword, nil},
		{"email is normalized", "  Client@Example.com ", testPassword, nil},
		{"wrong password", "client@example.com", "not the password", identity.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", testPassword, identity.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := env.auth.SignInWithPassword(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SignInWithPassword() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if session.User.ID != user.ID || session.AccessToken == "" || session.RefreshToken == "" {
				t.Errorf("unexpected session %+v", session)
			}
		})
	}
}

func TestInvitedUserCannotSignInBeforeSettingPassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Invite(context.Background(), Invite{Email: "new@example.com", Name: "New"})
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}

	_, err = env.auth.SignInWithPassword(context.Background(), "new@example.com", "")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	invitedWithPassword(t, env, "client@example.com")
	ctx := context.Background()

	session, err := env.auth.SignInWithPassword(ctx, "client@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}

	renewed, err := env.auth.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if renewed.RefreshToken == session.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	_, err = env.auth.Refresh(ctx, session.RefreshToken)
	if !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("reusing a refresh token: error = %v, want ErrInvalidToken", err)
	}

	if err := env.auth.Revoke(ctx, renewed.RefreshToken); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := env.auth.Revoke(ctx, renewed.RefreshToken); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("second Revoke() error = %v, want ErrInvalidToken", err)
	}
}

func TestUserFromAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := invitedWithPassword(t, env, "client@example.com")
	ctx := context.Background()

	session, err := env.auth.SignInWithPassword(ctx, "client@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}

	got, err := env.auth.UserFromAccessToken(ctx, session.AccessToken)
	if err != nil || got.ID != user.ID {
		t.Fatalf("UserFromAccessToken() = %v, %v", got, err)
	}

	_, err = env.auth.UserFromAccessToken(ctx, session.AccessToken+"x")
	if !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("tampered token: error = %v", err)
	}

	env.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = env.auth.UserFromAccessToken(ctx, session.AccessToken)
	if !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expired token: error = %v", err)
	}
}

func TestUpdatePasswordValidates(t *testing.T) {
	env := newTestEnv(t)
	user := env.client(t, "client@example.com", model.RoleClient)

	if err := env.auth.UpdatePassword(context.Background(), user.ID, "short"); err == nil {
		t.Error("expected weak password to be rejected")
	}
}

func TestInviteAndVerifyLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.newProject(t, "Website")

	user, err := env.auth.Invite(ctx, Invite{
		Email:      "Invitee@Example.com",
		Name:       "Invitee",
		ProjectIDs: []string{project.ID},
	})
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if user.Email != "invitee@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	profile, err := env.profiles.ByUserID(ctx, user.ID)
	if err != nil || profile.Role != model.RoleClient || profile.Name != "Invitee" {
		t.Fatalf("unexpected profile %+v, %v", profile, err)
	}

	visible, err := env.projects.VisibleByID(ctx, repository.ProjectScope{Brand: testBrand, UserID: user.ID}, project.ID)
	if err != nil || visible.ID != project.ID {
		t.Fatalf("invitee should see the project: %v", err)
	}

	token := env.linkToken(t, user.ID, model.TokenTypeInvite)

	_, err = env.auth.VerifyLink(ctx, token, identity.LinkRecovery)
	if !errors.Is(err, identity.ErrInvalidLink) {
		t.Errorf("wrong link type: error = %v", err)
	}

	fragment, err := env.auth.VerifyLink(ctx, token, identity.LinkInvite)
	if err != nil {
		t.Fatalf("VerifyLink() error = %v", err)
	}
	if fragment.Type != identity.LinkInvite || fragment.AccessToken == "" || fragment.ExpiresIn != 3600 {
		t.Errorf("unexpected fragment %+v", fragment)
	}

	_, err = env.auth.VerifyLink(ctx, token, identity.LinkInvite)
	if !errors.Is(err, identity.ErrInvalidLink) {
		t.Errorf("reused link: error = %v", err)
	}

	verified, err := env.users.ByID(ctx, user.ID)
	if err != nil || verified.EmailVerifiedAt == nil {
		t.Errorf("invite should verify the email: %+v, %v", verified, err)
	}
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	invitedWithPassword(t, env, "taken@example.com")

	tests := []struct {
		name    string
		invite  Invite
		wantErr error
	}{
		{"invalid email", Invite{Email: "nope", Name: "A"}, ErrInvalidEmail},
		{"missing name", Invite{Email: "a@example.com"}, ErrNameRequired},
		{"unknown role", Invite{Email: "a@example.com", Name: "A", Role: "owner"}, ErrInvalidRole},
		{"active account", Invite{Email: "taken@example.com", Name: "A"}, ErrEmailAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Invite(context.Background(), tt.invite)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Invite() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := invitedWithPassword(t, env, "client@example.com")

	if err := env.auth.SendRecovery(ctx, "nobody@example.com"); err != nil {
		t.Errorf("unknown email must not fail, got %v", err)
	}

	if err := env.auth.SendRecovery(ctx, "client@example.com"); err != nil {
		t.Fatalf("SendRecovery() error = %v", err)
	}
	token := env.linkToken(t, user.ID, model.TokenTypeRecovery)

	fragment, err := env.auth.VerifyLink(ctx, token, identity.LinkRecovery)
	if err != nil {
		t.Fatalf("VerifyLink() error = %v", err)
	}
	if fragment.Type != identity.LinkRecovery {
		t.Errorf("type = %q", fragment.Type)
	}
}
