package usecase

import (
	"errors"
	"testing"
	"time"

	authdomain "phishguard-backend/internal/auth/domain"
	"phishguard-backend/pkg/config"
)

type fakeUserRepo struct {
	users  map[string]*authdomain.User
	tokens map[string]*authdomain.RefreshToken

	findTokenErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*authdomain.User),
		tokens: make(map[string]*authdomain.RefreshToken),
	}
}

func (r *fakeUserRepo) Create(user *authdomain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) Update(user *authdomain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error {
	r.tokens[token.Token] = token
	return nil
}

func (r *fakeUserRepo) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	if r.findTokenErr != nil {
		return nil, r.findTokenErr
	}
	return r.tokens[token], nil
}

func (r *fakeUserRepo) DeleteRefreshToken(token string) error {
	delete(r.tokens, token)
	return nil
}

func (r *fakeUserRepo) DeleteRefreshTokensByUser(userID string) error {
	for t, rt := range r.tokens {
		if rt.UserID == userID {
			delete(r.tokens, t)
		}
	}
	return nil
}

type fakeFCMRepo struct {
	tokens map[string]string // token -> userID
}

func newFakeFCMRepo() *fakeFCMRepo {
	return &fakeFCMRepo{tokens: make(map[string]string)}
}

func (r *fakeFCMRepo) Register(userID, token, platform string) error {
	r.tokens[token] = userID
	return nil
}

func (r *fakeFCMRepo) TokensForUser(userID string) ([]string, error) {
	var out []string
	for t, uid := range r.tokens {
		if uid == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeFCMRepo) Remove(token string) error {
	delete(r.tokens, token)
	return nil
}

func (r *fakeFCMRepo) RemoveAllForUser(userID string) error {
	for t, uid := range r.tokens {
		if uid == userID {
			delete(r.tokens, t)
		}
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
}

func TestLogoutRevokesAllSessionsAndDevices(t *testing.T) {
	userRepo := newFakeUserRepo()
	fcmRepo := newFakeFCMRepo()

	userRepo.users["u1"] = &authdomain.User{ID: "u1", Email: "a@example.com"}
	userRepo.tokens["rt-phone"] = &authdomain.RefreshToken{Token: "rt-phone", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	userRepo.tokens["rt-laptop"] = &authdomain.RefreshToken{Token: "rt-laptop", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	userRepo.tokens["rt-other"] = &authdomain.RefreshToken{Token: "rt-other", UserID: "u2", ExpiresAt: time.Now().Add(time.Hour)}
	fcmRepo.tokens["fcm-phone"] = "u1"
	fcmRepo.tokens["fcm-other"] = "u2"

	uc := NewAuthUsecase(userRepo, fcmRepo, testConfig())

	if err := uc.Logout("rt-phone"); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, ok := userRepo.tokens["rt-phone"]; ok {
		t.Error("presented refresh token should be revoked")
	}
	if _, ok := userRepo.tokens["rt-laptop"]; ok {
		t.Error("other sessions of the same user should be revoked")
	}
	if _, ok := userRepo.tokens["rt-other"]; !ok {
		t.Error("sessions of other users must survive")
	}
	if _, ok := fcmRepo.tokens["fcm-phone"]; ok {
		t.Error("device tokens of the user should be unregistered")
	}
	if _, ok := fcmRepo.tokens["fcm-other"]; !ok {
		t.Error("device tokens of other users must survive")
	}
}

func TestLogoutUnknownTokenIsNoOp(t *testing.T) {
	userRepo := newFakeUserRepo()
	fcmRepo := newFakeFCMRepo()
	userRepo.tokens["rt"] = &authdomain.RefreshToken{Token: "rt", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	fcmRepo.tokens["fcm"] = "u1"

	uc := NewAuthUsecase(userRepo, fcmRepo, testConfig())

	if err := uc.Logout("never-issued"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(userRepo.tokens) != 1 || len(fcmRepo.tokens) != 1 {
		t.Error("an unknown token must not revoke anything")
	}
}

func TestLogoutPropagatesLookupError(t *testing.T) {
	userRepo := newFakeUserRepo()
	userRepo.findTokenErr = errors.New("connection reset")

	uc := NewAuthUsecase(userRepo, newFakeFCMRepo(), testConfig())

	if err := uc.Logout("rt"); err == nil {
		t.Fatal("expected the store error to surface")
	}
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	userRepo := newFakeUserRepo()
	user := &authdomain.User{ID: "u1", Email: "a@example.com"}
	userRepo.users["u1"] = user

	uc := NewAuthUsecase(userRepo, newFakeFCMRepo(), testConfig()).(*authUsecase)

	issued, err := uc.generateTokens(user)
	if err != nil {
		t.Fatalf("generateTokens: %v", err)
	}

	rotated, err := uc.RefreshToken(issued.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if rotated.RefreshToken == issued.RefreshToken {
		t.Fatal("refresh must issue a new token")
	}
	if _, ok := userRepo.tokens[issued.RefreshToken]; ok {
		t.Error("the presented refresh token should be consumed")
	}

	if _, err := uc.RefreshToken(issued.RefreshToken); err == nil {
		t.Error("a consumed refresh token must be rejected")
	}
}
