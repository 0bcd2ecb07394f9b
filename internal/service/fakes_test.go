package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

// --- Общие хелперы ---

// discardLogger возвращает логгер, который ничего не пишет.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMemSnapshots создаёт хранилище снимков в памяти.
func newMemSnapshots(t *testing.T) *snapshot.Store {
	t.Helper()
	store := snapshot.NewStore(memblob.OpenBucket(nil), "mem://snapshots")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeSnapshot записывает data как снимок key в конверте {fetchedAt, key, url, data}.
func writeSnapshot(t *testing.T, store *snapshot.Store, key string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Ошибка сериализации снимка %s: %v", key, err)
	}
	doc := &snapshot.Document{
		FetchedAt: time.Now().UTC(),
		Key:       key,
		URL:       "https://triup.test/" + key,
		Data:      raw,
	}
	if _, err := store.Write(context.Background(), doc); err != nil {
		t.Fatalf("Ошибка записи снимка %s: %v", key, err)
	}
}

func ptr[T any](v T) *T { return &v }

// --- In-memory БД ---

// memRef — строка справочной таблицы.
type memRef struct {
	pk     string
	id     *int64
	values []model.ColumnValue
}

// memDB — in-memory реализация всех репозиториев и Transactor.
// Записи хранятся копиями, поэтому откат транзакции — восстановление срезов.
type memDB struct {
	refs        map[string][]*memRef
	findings    []*model.NewFinding
	plans       []*model.ResearchPlan
	owners      []*model.ResearchOwner
	files       []*model.FileUpload
	pivots      []*model.Pivot
	sessions    []*model.Session
	users       []*model.DirectoryUser
	researchers []*model.Researcher
	psuUsers    []*model.PSUUser
	roleLog     []*model.RoleLogEntry
	syncState   map[model.SyncStage]time.Time
	master      map[string][]map[string]any
	seq         int64

	// Сбои, задаваемые тестом
	failCreateFile       func(f *model.FileUpload) error
	failInsertResearcher func(r *model.Researcher) error
	failRoleLog          error

	txCount int
}

func newMemDB() *memDB {
	return &memDB{
		refs:      make(map[string][]*memRef),
		syncState: make(map[model.SyncStage]time.Time),
		master:    make(map[string][]map[string]any),
	}
}

func (db *memDB) nextID() int64 {
	db.seq++
	return db.seq
}

func (db *memDB) nextUUID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, db.nextID())
}

// store возвращает набор репозиториев поверх memDB.
func (db *memDB) store() *repository.Store {
	return &repository.Store{
		References:  &mockReferenceRepo{db},
		Findings:    &mockFindingRepo{db},
		Plans:       &mockPlanRepo{db},
		Owners:      &mockOwnerRepo{db},
		Attachments: &mockAttachmentRepo{db},
		Sessions:    &mockSessionRepo{db},
		Directory:   &mockDirectoryRepo{db},
		PSUUsers:    &mockPSUUserRepo{db},
		RoleLog:     &mockRoleLogRepo{db},
		Master:      &mockMasterRepo{db},
		SyncState:   &mockSyncStateRepo{db},
	}
}

// InTx выполняет fn; при ошибке состояние восстанавливается.
func (db *memDB) InTx(_ context.Context, fn func(s *repository.Store) error) error {
	db.txCount++
	saved := *db
	saved.refs = make(map[string][]*memRef, len(db.refs))
	for table, rows := range db.refs {
		saved.refs[table] = slices.Clone(rows)
	}
	saved.findings = slices.Clone(db.findings)
	saved.plans = slices.Clone(db.plans)
	saved.owners = slices.Clone(db.owners)
	saved.files = slices.Clone(db.files)
	saved.pivots = slices.Clone(db.pivots)
	saved.sessions = slices.Clone(db.sessions)
	saved.users = slices.Clone(db.users)
	saved.researchers = slices.Clone(db.researchers)
	saved.psuUsers = slices.Clone(db.psuUsers)
	saved.roleLog = slices.Clone(db.roleLog)
	saved.syncState = maps.Clone(db.syncState)

	if err := fn(db.store()); err != nil {
		seq := db.seq
		*db = saved
		db.seq = seq // последовательности не откатываются, как в PostgreSQL
		return err
	}
	return nil
}

// pivotsOf возвращает связи владельца.
func (db *memDB) pivotsOf(slot model.OwnerSlot, id int64) []*model.Pivot {
	var out []*model.Pivot
	for _, p := range db.pivots {
		if p.UploadableType == slot.Tag() && p.UploadableID == id {
			out = append(out, p)
		}
	}
	return out
}

// file возвращает вложение по fu_id.
func (db *memDB) file(fuID int64) *model.FileUpload {
	for _, f := range db.files {
		if f.FuID == fuID {
			return f
		}
	}
	return nil
}

// --- Справочники ---

type mockReferenceRepo struct{ db *memDB }

func (r *mockReferenceRepo) FindByUpstreamID(_ context.Context, table repository.ReferenceTable, id int64) (string, error) {
	for _, row := range r.db.refs[table.Name] {
		if row.id != nil && *row.id == id {
			return row.pk, nil
		}
	}
	return "", repository.ErrNotFound
}

func (r *mockReferenceRepo) Insert(_ context.Context, table repository.ReferenceTable, rec *model.ReferenceRecord) (string, error) {
	row := &memRef{
		pk:     r.db.nextUUID(table.Name),
		id:     rec.UpstreamID,
		values: slices.Clone(rec.Values),
	}
	r.db.refs[table.Name] = append(r.db.refs[table.Name], row)
	return row.pk, nil
}

func (r *mockReferenceRepo) Update(_ context.Context, table repository.ReferenceTable, pk string, rec *model.ReferenceRecord) error {
	rows := r.db.refs[table.Name]
	for i, row := range rows {
		if row.pk == pk {
			rows[i] = &memRef{pk: pk, id: rec.UpstreamID, values: slices.Clone(rec.Values)}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *mockReferenceRepo) Count(_ context.Context, table repository.ReferenceTable) (int, error) {
	return len(r.db.refs[table.Name]), nil
}

// --- Формы ---

type mockFindingRepo struct{ db *memDB }

func (r *mockFindingRepo) FindByFormNewID(_ context.Context, formNewID int64) (*model.RowRef, error) {
	for _, f := range r.db.findings {
		if f.FormNewID != nil && *f.FormNewID == formNewID {
			return &model.RowRef{ID: f.PkID, UUID: f.PkUUID}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockFindingRepo) Insert(_ context.Context, f *model.NewFinding) error {
	f.PkID = r.db.nextID()
	f.PkUUID = fmt.Sprintf("finding-%d", f.PkID)
	cp := *f
	r.db.findings = append(r.db.findings, &cp)
	return nil
}

func (r *mockFindingRepo) Update(_ context.Context, f *model.NewFinding) error {
	for i, existing := range r.db.findings {
		if existing.PkUUID == f.PkUUID {
			cp := *f
			r.db.findings[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

type mockPlanRepo struct{ db *memDB }

func (r *mockPlanRepo) find(match func(p *model.ResearchPlan) bool) (*model.RowRef, error) {
	for _, p := range r.db.plans {
		if match(p) {
			return &model.RowRef{ID: p.PkID, UUID: p.PkUUID}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockPlanRepo) FindByFormNewID(_ context.Context, formNewID int64) (*model.RowRef, error) {
	return r.find(func(p *model.ResearchPlan) bool {
		return p.FormPlanFormNewID != nil && *p.FormPlanFormNewID == formNewID
	})
}

func (r *mockPlanRepo) FindByFormPlanID(_ context.Context, formPlanID int64) (*model.RowRef, error) {
	return r.find(func(p *model.ResearchPlan) bool {
		return p.FormPlanID != nil && *p.FormPlanID == formPlanID
	})
}

func (r *mockPlanRepo) Insert(_ context.Context, p *model.ResearchPlan) error {
	p.PkID = r.db.nextID()
	p.PkUUID = fmt.Sprintf("plan-%d", p.PkID)
	cp := *p
	r.db.plans = append(r.db.plans, &cp)
	return nil
}

func (r *mockPlanRepo) Update(_ context.Context, p *model.ResearchPlan) error {
	for i, existing := range r.db.plans {
		if existing.PkUUID == p.PkUUID {
			cp := *p
			r.db.plans[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *mockPlanRepo) SetFileUploads(_ context.Context, pkID int64, fuID *int64) error {
	for i, existing := range r.db.plans {
		if existing.PkID == pkID {
			cp := *existing
			cp.FileUploads = fuID
			r.db.plans[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

type mockOwnerRepo struct{ db *memDB }

func (r *mockOwnerRepo) find(match func(o *model.ResearchOwner) bool) (*model.RowRef, error) {
	for _, o := range r.db.owners {
		if match(o) {
			return &model.RowRef{ID: o.PkID, UUID: o.PkUUID}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockOwnerRepo) FindByFormNewID(_ context.Context, formNewID int64) (*model.RowRef, error) {
	return r.find(func(o *model.ResearchOwner) bool {
		return o.FormNewID != nil && *o.FormNewID == formNewID
	})
}

func (r *mockOwnerRepo) FindByFormOwnID(_ context.Context, formOwnID int64) (*model.RowRef, error) {
	return r.find(func(o *model.ResearchOwner) bool {
		return o.FormOwnID != nil && *o.FormOwnID == formOwnID
	})
}

func (r *mockOwnerRepo) Insert(_ context.Context, o *model.ResearchOwner) error {
	o.PkID = r.db.nextID()
	o.PkUUID = fmt.Sprintf("owner-%d", o.PkID)
	cp := *o
	r.db.owners = append(r.db.owners, &cp)
	return nil
}

func (r *mockOwnerRepo) Update(_ context.Context, o *model.ResearchOwner) error {
	for i, existing := range r.db.owners {
		if existing.PkUUID == o.PkUUID {
			cp := *o
			r.db.owners[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *mockOwnerRepo) SetFileUploads(_ context.Context, pkID int64, plan, contract, other *int64) error {
	for i, existing := range r.db.owners {
		if existing.PkID == pkID {
			cp := *existing
			cp.FileUploadsPlan, cp.FileUploadsContract, cp.FileUploadsOther = plan, contract, other
			r.db.owners[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Вложения ---

type mockAttachmentRepo struct{ db *memDB }

func (r *mockAttachmentRepo) ListPivots(_ context.Context, owner model.AttachmentOwner) ([]*model.Pivot, error) {
	return r.db.pivotsOf(owner.Slot, owner.ID), nil
}

func (r *mockAttachmentRepo) DeletePivots(_ context.Context, owner model.AttachmentOwner) (int64, error) {
	before := len(r.db.pivots)
	r.db.pivots = slices.DeleteFunc(slices.Clone(r.db.pivots), func(p *model.Pivot) bool {
		return p.UploadableType == owner.Slot.Tag() && p.UploadableID == owner.ID
	})
	return int64(before - len(r.db.pivots)), nil
}

func (r *mockAttachmentRepo) DeleteFiles(_ context.Context, fuIDs []int64) (int64, error) {
	before := len(r.db.files)
	r.db.files = slices.DeleteFunc(slices.Clone(r.db.files), func(f *model.FileUpload) bool {
		return slices.Contains(fuIDs, f.FuID)
	})
	return int64(before - len(r.db.files)), nil
}

func (r *mockAttachmentRepo) CreateFile(_ context.Context, f *model.FileUpload) error {
	if r.db.failCreateFile != nil {
		if err := r.db.failCreateFile(f); err != nil {
			return err
		}
	}
	f.FuID = r.db.nextID()
	f.FuPkUUID = fmt.Sprintf("fu-%d", f.FuID)
	cp := *f
	r.db.files = append(r.db.files, &cp)
	return nil
}

func (r *mockAttachmentRepo) CreatePivot(_ context.Context, p *model.Pivot) error {
	p.PivotID = r.db.nextID()
	p.PivotPkUUID = fmt.Sprintf("pivot-%d", p.PivotID)
	cp := *p
	r.db.pivots = append(r.db.pivots, &cp)
	return nil
}

// --- Сессии ---

type mockSessionRepo struct{ db *memDB }

func (r *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	s.ID = r.db.nextID()
	s.UUID = fmt.Sprintf("session-%d", s.ID)
	s.CreatedAt = time.Now().UTC()
	cp := *s
	r.db.sessions = append(r.db.sessions, &cp)
	return nil
}

func (r *mockSessionRepo) GetByToken(_ context.Context, token string) (*model.Session, error) {
	for i := len(r.db.sessions) - 1; i >= 0; i-- {
		if r.db.sessions[i].Token == token {
			cp := *r.db.sessions[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockSessionRepo) Latest(_ context.Context) (*model.Session, error) {
	if len(r.db.sessions) == 0 {
		return nil, repository.ErrNotFound
	}
	cp := *r.db.sessions[len(r.db.sessions)-1]
	return &cp, nil
}

// --- users / researcher ---

type mockDirectoryRepo struct{ db *memDB }

func (r *mockDirectoryRepo) DeleteAllUsers(_ context.Context) (int64, error) {
	n := len(r.db.users)
	r.db.users = nil
	return int64(n), nil
}

func (r *mockDirectoryRepo) InsertUser(_ context.Context, u *model.DirectoryUser) error {
	u.PkUUID = r.db.nextUUID("user")
	cp := *u
	r.db.users = append(r.db.users, &cp)
	return nil
}

func (r *mockDirectoryRepo) DeleteAllResearchers(_ context.Context) (int64, error) {
	n := len(r.db.researchers)
	r.db.researchers = nil
	return int64(n), nil
}

func (r *mockDirectoryRepo) InsertResearcher(_ context.Context, res *model.Researcher) error {
	if r.db.failInsertResearcher != nil {
		if err := r.db.failInsertResearcher(res); err != nil {
			return err
		}
	}
	res.PkUUID = r.db.nextUUID("researcher")
	cp := *res
	r.db.researchers = append(r.db.researchers, &cp)
	return nil
}

// --- Пользователи PSU ---

type mockPSUUserRepo struct{ db *memDB }

func (r *mockPSUUserRepo) List(_ context.Context) ([]*model.PSUUser, error) {
	out := make([]*model.PSUUser, 0, len(r.db.psuUsers))
	for _, u := range r.db.psuUsers {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *mockPSUUserRepo) get(match func(u *model.PSUUser) bool) (*model.PSUUser, error) {
	for _, u := range r.db.psuUsers {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockPSUUserRepo) GetByUUID(_ context.Context, id string) (*model.PSUUser, error) {
	return r.get(func(u *model.PSUUser) bool { return u.UUID == id })
}

func (r *mockPSUUserRepo) GetByUsername(_ context.Context, username string) (*model.PSUUser, error) {
	return r.get(func(u *model.PSUUser) bool { return u.Username == username })
}

func (r *mockPSUUserRepo) Create(_ context.Context, u *model.PSUUser) error {
	for _, existing := range r.db.psuUsers {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	u.ID = r.db.nextID()
	u.UUID = fmt.Sprintf("psu-%d", u.ID)
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.db.psuUsers = append(r.db.psuUsers, &cp)
	return nil
}

func (r *mockPSUUserRepo) UpdateRole(_ context.Context, id string, rolesID int) (*model.PSUUser, error) {
	for i, existing := range r.db.psuUsers {
		if existing.UUID == id {
			cp := *existing
			cp.RolesID = rolesID
			r.db.psuUsers[i] = &cp
			out := cp
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockPSUUserRepo) TouchLogin(_ context.Context, userID int64, at time.Time) error {
	for i, existing := range r.db.psuUsers {
		if existing.ID == userID {
			cp := *existing
			cp.LastLogin = &at
			r.db.psuUsers[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

// addPSUUser добавляет пользователя напрямую (как в уже заполненной БД).
func (db *memDB) addPSUUser(username string, rolesID int) *model.PSUUser {
	u := &model.PSUUser{
		ID:       db.nextID(),
		Username: username,
		RolesID:  rolesID,
	}
	u.UUID = fmt.Sprintf("psu-%d", u.ID)
	db.psuUsers = append(db.psuUsers, u)
	cp := *u
	return &cp
}

// --- Журнал ролей ---

type mockRoleLogRepo struct{ db *memDB }

func (r *mockRoleLogRepo) Create(_ context.Context, e *model.RoleLogEntry) error {
	if r.db.failRoleLog != nil {
		return r.db.failRoleLog
	}
	e.LogID = r.db.nextUUID("log")
	cp := *e
	r.db.roleLog = append(r.db.roleLog, &cp)
	return nil
}

func (r *mockRoleLogRepo) ListByUser(_ context.Context, username string) ([]*model.RoleLogEntry, error) {
	var out []*model.RoleLogEntry
	for i := len(r.db.roleLog) - 1; i >= 0; i-- {
		if r.db.roleLog[i].UserID == username {
			cp := *r.db.roleLog[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Мастер-выборки ---

type mockMasterRepo struct{ db *memDB }

func (r *mockMasterRepo) List(_ context.Context, table, _ string) ([]map[string]any, error) {
	rows, ok := r.db.master[table]
	if !ok {
		return []map[string]any{}, nil
	}
	return rows, nil
}

// --- Состояние синхронизации ---

type mockSyncStateRepo struct{ db *memDB }

func (r *mockSyncStateRepo) Get(_ context.Context) (*model.SyncState, error) {
	state := &model.SyncState{ID: 1}
	at := func(stage model.SyncStage) *time.Time {
		t, ok := r.db.syncState[stage]
		if !ok {
			return nil
		}
		return &t
	}
	state.LastFetchAt = at(model.StageFetch)
	state.LastReferenceImportAt = at(model.StageReferenceImport)
	state.LastFormImportAt = at(model.StageFormImport)
	state.LastUserImportAt = at(model.StageUserImport)
	return state, nil
}

func (r *mockSyncStateRepo) Mark(_ context.Context, stage model.SyncStage, t time.Time) error {
	r.db.syncState[stage] = t
	return nil
}
