package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

// memUserRepo 内存实现的用户仓储，模拟数据库语义（读写都是副本）
type memUserRepo struct {
	mu        sync.Mutex
	seq       int64
	users     map[int64]*domain.User
	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
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

// seed 直接写入一个用户并返回其副本
func (r *memUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		r.seq++
		u.ID = r.seq
	} else if u.ID > r.seq {
		r.seq = u.ID
	}
	r.users[u.ID] = copyUser(u)
	return copyUser(u)
}

func (r *memUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = r.seq
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *memUserRepo) GetByID(id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.users[id]), nil
}

func (r *memUserRepo) GetByUsername(username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByIdentity(identity string) (*domain.User, error) {
	if u, _ := r.GetByUsername(identity); u != nil {
		return u, nil
	}
	return r.GetByEmail(identity)
}

func (r *memUserRepo) Update(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user not found")
	}
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *memUserRepo) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user not found")
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) IncrementDownloadCount(id int64, max int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DownloadCount >= max {
		return false, nil
	}
	u.DownloadCount++
	return true, nil
}

func (r *memUserRepo) ListUsers(offset, limit int) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*domain.User
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	total := int64(len(users))
	if offset >= len(users) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], total, nil
}

func (r *memUserRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *memUserRepo) CountByRole(role domain.UserRole) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// memActivityRepo 内存实现的活动仓储
type memActivityRepo struct {
	mu         sync.Mutex
	activities []*domain.Activity
	appendErr  error
}

func (r *memActivityRepo) Append(activity *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	activity.ID = int64(len(r.activities) + 1)
	r.activities = append(r.activities, activity)
	return nil
}

func (r *memActivityRepo) Recent(limit int) ([]*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Activity
	for i := len(r.activities) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.activities[i])
	}
	return out, nil
}

func (r *memActivityRepo) CountByType(t domain.ActivityType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.activities {
		if a.Type == t {
			n++
		}
	}
	return n, nil
}

// byType 按类型过滤已记录的活动
func (r *memActivityRepo) byType(t domain.ActivityType) []*domain.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Activity
	for _, a := range r.activities {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// memWorkflowRepo 内存实现的工作流仓储
type memWorkflowRepo struct {
	mu        sync.Mutex
	seq       int64
	workflows map[int64]*domain.Workflow
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{workflows: make(map[int64]*domain.Workflow)}
}

func (r *memWorkflowRepo) seed(wf *domain.Workflow) *domain.Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wf.ID == 0 {
		r.seq++
		wf.ID = r.seq
	}
	if wf.Status == "" {
		wf.Status = domain.WorkflowStatusActive
	}
	c := *wf
	r.workflows[wf.ID] = &c
	return wf
}

func (r *memWorkflowRepo) Create(wf *domain.Workflow) error {
	r.seed(wf)
	return nil
}

func (r *memWorkflowRepo) GetByID(id int64) (*domain.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok || wf.Status == domain.WorkflowStatusDeleted {
		return nil, nil
	}
	c := *wf
	return &c, nil
}

func (r *memWorkflowRepo) Update(wf *domain.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *wf
	r.workflows[wf.ID] = &c
	return nil
}

func (r *memWorkflowRepo) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return fmt.Errorf("workflow not found")
	}
	wf.Status = domain.WorkflowStatusDeleted
	return nil
}

func (r *memWorkflowRepo) List(req *domain.WorkflowListRequest) ([]*domain.Workflow, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Workflow
	for _, wf := range r.workflows {
		if wf.Status == domain.WorkflowStatusDeleted {
			continue
		}
		c := *wf
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

func (r *memWorkflowRepo) IncrementViewCount(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wf, ok := r.workflows[id]; ok {
		wf.ViewCount++
	}
	return nil
}

func (r *memWorkflowRepo) IncrementDownloadCount(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wf, ok := r.workflows[id]; ok {
		wf.DownloadCount++
	}
	return nil
}

func (r *memWorkflowRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, wf := range r.workflows {
		if wf.Status != domain.WorkflowStatusDeleted {
			n++
		}
	}
	return n, nil
}

// memOrderRepo 内存实现的订单仓储
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *memOrderRepo) Create(order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *order
	r.orders[order.ID] = &c
	return nil
}

func (r *memOrderRepo) GetByID(id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (r *memOrderRepo) Close(id string, status domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	return true, nil
}

func (r *memOrderRepo) ListByUserID(userID int64, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}
