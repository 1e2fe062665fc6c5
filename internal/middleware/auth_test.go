package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/config"
	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// fakeUserRepo 内存用户仓储，给认证中间件测试用
type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) clone(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.VipExpiresAt != nil {
		t := *u.VipExpiresAt
		c.VipExpiresAt = &t
	}
	if u.SvipExpiresAt != nil {
		t := *u.SvipExpiresAt
		c.SvipExpiresAt = &t
	}
	return &c
}

func (r *fakeUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	u.ID = r.seq
	r.users[u.ID] = r.clone(u)
	return r.clone(u)
}

func (r *fakeUserRepo) Create(u *domain.User) error {
	r.seed(u)
	return nil
}

func (r *fakeUserRepo) GetByID(id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clone(r.users[id]), nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return r.clone(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*domain.User, error) { return nil, nil }

func (r *fakeUserRepo) GetByIdentity(identity string) (*domain.User, error) {
	return r.GetByUsername(identity)
}

func (r *fakeUserRepo) Update(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return fmt.Errorf("user not found")
	}
	r.users[u.ID] = r.clone(u)
	return nil
}

func (r *fakeUserRepo) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) IncrementDownloadCount(id int64, max int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DownloadCount >= max {
		return false, nil
	}
	u.DownloadCount++
	return true, nil
}

func (r *fakeUserRepo) ListUsers(offset, limit int) ([]*domain.User, int64, error) {
	return nil, 0, nil
}

func (r *fakeUserRepo) Count() (int64, error) { return 0, nil }

func (r *fakeUserRepo) CountByRole(role domain.UserRole) (int64, error) { return 0, nil }

// fakeActivityRepo 丢弃一切写入的活动仓储
type fakeActivityRepo struct{}

func (fakeActivityRepo) Append(*domain.Activity) error                  { return nil }
func (fakeActivityRepo) Recent(int) ([]*domain.Activity, error)         { return nil, nil }
func (fakeActivityRepo) CountByType(domain.ActivityType) (int64, error) { return 0, nil }

type authFixture struct {
	userRepo *fakeUserRepo
	jwt      service.JWTService
	handler  func(next http.Handler) http.Handler
}

func newAuthFixture() *authFixture {
	cfg := &config.Config{}
	cfg.App.Name = "flowhub-test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenTTL = time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	logger := zap.NewNop()
	userRepo := newFakeUserRepo()
	jwtService := service.NewJWTService(cfg, userRepo, logger)
	activities := service.NewActivityService(fakeActivityRepo{}, logger)
	membership := service.NewMembershipService(userRepo, activities, logger)

	return &authFixture{
		userRepo: userRepo,
		jwt:      jwtService,
		handler:  AuthMiddleware(jwtService, userRepo, membership, logger),
	}
}

// echoUser 把上下文里的用户回传给测试断言
func echoUser(captured **domain.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	fx := newAuthFixture()

	var captured *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	rec := httptest.NewRecorder()
	fx.handler(echoUser(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if captured != nil {
		t.Error("handler must not run without credentials")
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	fx := newAuthFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	fx.handler(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_DeletedUser(t *testing.T) {
	fx := newAuthFixture()
	user := fx.userRepo.seed(&domain.User{Username: "alice", Role: domain.UserRoleUser})

	pair, err := fx.jwt.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}
	if err := fx.userRepo.Delete(user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	fx.handler(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deleted user", rec.Code)
	}
}

func TestAuthMiddleware_InjectsFreshUser(t *testing.T) {
	fx := newAuthFixture()
	user := fx.userRepo.seed(&domain.User{Username: "bob", Role: domain.UserRoleUser})

	pair, err := fx.jwt.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}

	var captured *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	fx.handler(echoUser(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured == nil || captured.ID != user.ID {
		t.Fatal("authenticated user not injected into context")
	}
}

func TestAuthMiddleware_ExpiredVipDowngraded(t *testing.T) {
	fx := newAuthFixture()
	expired := time.Now().Add(-time.Hour)
	user := fx.userRepo.seed(&domain.User{
		Username: "carol", Role: domain.UserRoleVip, IsVip: true,
		VipExpiresAt: &expired, MaxDownloads: domain.VipMaxDownloads,
	})

	// 令牌里还是vip快照，但请求到达时会员已过期
	pair, err := fx.jwt.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}

	var captured *domain.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	fx.handler(echoUser(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.IsVip || captured.Role != domain.UserRoleUser {
		t.Errorf("handler saw is_vip=%v role=%s, want downgraded user", captured.IsVip, captured.Role)
	}

	stored, _ := fx.userRepo.GetByID(user.ID)
	if stored.IsVip || stored.Role != domain.UserRoleUser {
		t.Error("downgrade must be persisted")
	}
}

func TestRequireAdmin(t *testing.T) {
	logger := zap.NewNop()
	admin := RequireAdmin(logger)

	run := func(user *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)
		return rec
	}

	if rec := run(nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", rec.Code)
	}
	if rec := run(&domain.User{ID: 1, Role: domain.UserRoleVip}); rec.Code != http.StatusForbidden {
		t.Errorf("vip: status = %d, want 403", rec.Code)
	}
	if rec := run(&domain.User{ID: 2, Role: domain.UserRoleAdmin}); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
	if rec := run(&domain.User{ID: 3, Role: domain.UserRoleSuperAdmin}); rec.Code != http.StatusOK {
		t.Errorf("superadmin: status = %d, want 200", rec.Code)
	}
}
