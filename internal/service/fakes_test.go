package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orgsync/directory-sync/internal/directory"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/lock"
)

type fakeSource struct {
	mu          sync.Mutex
	departments []directory.Department
	users       []directory.UserDetail
	details     map[string]directory.UserDetail
	deptErr     error
	userErr     error
	detailErr   map[string]error

	// onListDepartments runs inside ListDepartments before it returns.
	onListDepartments func()
	deptCalls         atomic.Int32
}

func (f *fakeSource) ListDepartments(context.Context) ([]directory.Department, error) {
	f.deptCalls.Add(1)
	if f.onListDepartments != nil {
		f.onListDepartments()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deptErr != nil {
		return nil, f.deptErr
	}
	return append([]directory.Department(nil), f.departments...), nil
}

func (f *fakeSource) GetAllUsers(context.Context) ([]directory.UserDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	return append([]directory.UserDetail(nil), f.users...), nil
}

func (f *fakeSource) GetUser(_ context.Context, userID string) (*directory.UserDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[userID]; err != nil {
		return nil, err
	}
	if detail, ok := f.details[userID]; ok {
		return &detail, nil
	}
	for _, u := range f.users {
		if u.UserID == userID {
			return &u, nil
		}
	}
	return nil, &directory.UpstreamError{Endpoint: "user/get", Code: 60111, Message: "userid not found"}
}

func (f *fakeSource) setDepartments(depts ...directory.Department) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departments = depts
}

type memDepartmentRepo struct {
	mu      sync.Mutex
	seq     int
	rows    map[string]domain.Department
	commits []string
	calls   int
	failOn  map[string]error
}

func newMemDepartmentRepo() *memDepartmentRepo {
	return &memDepartmentRepo{rows: make(map[string]domain.Department), failOn: make(map[string]error)}
}

func (r *memDepartmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := r.failOn[dept.ExternalID]; err != nil {
		return err
	}
	if _, ok := r.rows[dept.ExternalID]; ok {
		return fmt.Errorf("duplicate external_id %s", dept.ExternalID)
	}
	r.seq++
	dept.ID = fmt.Sprintf("dept-%d", r.seq)
	dept.CreatedAt = time.Now()
	dept.UpdatedAt = dept.CreatedAt
	r.rows[dept.ExternalID] = *dept
	r.commits = append(r.commits, dept.ExternalID)
	return nil
}

func (r *memDepartmentRepo) Update(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := r.failOn[dept.ExternalID]; err != nil {
		return err
	}
	if _, ok := r.rows[dept.ExternalID]; !ok {
		return pgx.ErrNoRows
	}
	dept.UpdatedAt = time.Now()
	r.rows[dept.ExternalID] = *dept
	r.commits = append(r.commits, dept.ExternalID)
	return nil
}

func (r *memDepartmentRepo) GetByExternalID(_ context.Context, externalID string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	row, ok := r.rows[externalID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (r *memDepartmentRepo) List(_ context.Context, includeInactive bool) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := make([]domain.Department, 0, len(r.rows))
	for _, row := range r.rows {
		if row.IsActive || includeInactive {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *memDepartmentRepo) DeactivateMissing(_ context.Context, observed []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	seen := toSet(observed)
	var n int64
	for id, row := range r.rows {
		if row.IsActive && !seen[id] {
			row.IsActive = false
			r.rows[id] = row
			n++
		}
	}
	return n, nil
}

func (r *memDepartmentRepo) CountActive(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *memDepartmentRepo) get(externalID string) (domain.Department, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[externalID]
	return row, ok
}

func (r *memDepartmentRepo) seed(dept domain.Department) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	dept.ID = fmt.Sprintf("dept-%d", r.seq)
	r.rows[dept.ExternalID] = dept
}

func (r *memDepartmentRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *memDepartmentRepo) committed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

type memUserRepo struct {
	mu      sync.Mutex
	seq     int
	rows    map[string]domain.User
	commits []string
	calls   int
	failOn  map[string]error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{rows: make(map[string]domain.User), failOn: make(map[string]error)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := r.failOn[user.ExternalID]; err != nil {
		return err
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	r.rows[user.ExternalID] = *user
	r.commits = append(r.commits, user.ExternalID)
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := r.failOn[user.ExternalID]; err != nil {
		return err
	}
	if _, ok := r.rows[user.ExternalID]; !ok {
		return pgx.ErrNoRows
	}
	r.rows[user.ExternalID] = *user
	r.commits = append(r.commits, user.ExternalID)
	return nil
}

func (r *memUserRepo) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	row, ok := r.rows[externalID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (r *memUserRepo) DeactivateMissing(_ context.Context, observed []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	seen := toSet(observed)
	var n int64
	for id, row := range r.rows {
		if row.IsActive && !seen[id] {
			row.IsActive = false
			r.rows[id] = row
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) CountActive(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) get(externalID string) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[externalID]
	return row, ok
}

func (r *memUserRepo) seed(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	r.rows[user.ExternalID] = user
}

func (r *memUserRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *memUserRepo) committed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

// memStatusRepo reports the lock held by its locker as the running flag.
type memStatusRepo struct {
	mu          sync.Mutex
	locker      lock.Locker
	lockName    string
	lastSuccess *time.Time
	lastResult  *domain.SyncResult
}

func (r *memStatusRepo) IsRunning(ctx context.Context) (bool, error) {
	return r.locker.Held(ctx, r.lockName)
}

func (r *memStatusRepo) LastSuccess(context.Context) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess, nil
}

func (r *memStatusRepo) RecordSuccess(_ context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSuccess = &at
	return nil
}

func (r *memStatusRepo) SaveLastResult(_ context.Context, result *domain.SyncResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *result
	r.lastResult = &copied
	return nil
}

func (r *memStatusRepo) LastResult(context.Context) (*domain.SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastResult, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func dept(id, parent int, name string) directory.Department {
	return directory.Department{ID: id, Name: name, ParentID: parent, Order: id}
}

func member(userID string, departments ...int) directory.UserDetail {
	return directory.UserDetail{
		UserID:     userID,
		Name:       "Member " + userID,
		Department: departments,
		Email:      userID + "@example.com",
	}
}
