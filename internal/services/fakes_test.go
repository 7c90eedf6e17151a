package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"
)

// In-memory stores mirroring the repository contracts so services can be
// tested without a database.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *user
	u.Email = strings.ToLower(u.Email)
	f.users[u.ID] = &u
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	u := *user
	return &u, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == strings.ToLower(email) {
			u := *user
			return &u, nil
		}
	}
	return nil, apperr.E(apperr.NotFound, "user not found")
}

func (f *fakeUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *fakeUserStore) Update(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u := *user
	u.Email = strings.ToLower(u.Email)
	f.users[u.ID] = &u
	return nil
}

func (f *fakeUserStore) ListAll(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []*models.User
	for _, user := range f.users {
		u := *user
		users = append(users, &u)
	}
	return users, nil
}

func (f *fakeUserStore) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

type fakeCircleStore struct {
	mu    sync.Mutex
	rels  []models.CircleRelation
	users *fakeUserStore
}

func newFakeCircleStore(users *fakeUserStore) *fakeCircleStore {
	return &fakeCircleStore{users: users}
}

func (f *fakeCircleStore) Ensure(_ context.Context, rel models.CircleRelation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rels {
		if r.OwnerID == rel.OwnerID && r.MemberID == rel.MemberID {
			return nil
		}
	}
	f.rels = append(f.rels, rel)
	return nil
}

func (f *fakeCircleStore) UpdateRole(_ context.Context, ownerID, memberID string, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rels {
		if r.OwnerID == ownerID && r.MemberID == memberID {
			f.rels[i].Role = role
			return nil
		}
	}
	return apperr.E(apperr.NotFound, "family member not found")
}

func (f *fakeCircleStore) Get(_ context.Context, ownerID, memberID string) (models.Role, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rels {
		if r.OwnerID == ownerID && r.MemberID == memberID {
			return r.Role, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeCircleStore) ListByOwner(_ context.Context, ownerID string) ([]models.CircleMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []models.CircleMember
	for _, r := range f.rels {
		if r.OwnerID != ownerID {
			continue
		}
		m := models.CircleMember{UserID: r.MemberID, Role: r.Role}
		if u, ok := f.users.users[r.MemberID]; ok {
			m.Username = u.Username
			m.ProfileImageURL = u.ProfileImageURL
		}
		members = append(members, m)
	}
	return members, nil
}

type fakeMemoryStore struct {
	mu        sync.Mutex
	memories  map[string]*models.Memory
	seq       map[string]int
	nextSeq   int
	reactions map[string][]models.Reaction // memory id -> reactions
	users     *fakeUserStore
}

func newFakeMemoryStore(users *fakeUserStore) *fakeMemoryStore {
	return &fakeMemoryStore{
		memories:  make(map[string]*models.Memory),
		seq:       make(map[string]int),
		reactions: make(map[string][]models.Reaction),
		users:     users,
	}
}

func copyMemory(m *models.Memory) *models.Memory {
	cp := *m
	cp.Images = append([]models.Image{}, m.Images...)
	cp.Comments = append([]models.Comment{}, m.Comments...)
	return &cp
}

func (f *fakeMemoryStore) Create(_ context.Context, memory *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories[memory.ID] = copyMemory(memory)
	f.nextSeq++
	f.seq[memory.ID] = f.nextSeq
	return nil
}

func (f *fakeMemoryStore) GetByID(_ context.Context, id string) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	memory, ok := f.memories[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "memory not found")
	}
	cp := copyMemory(memory)
	cp.Reactions = append([]models.Reaction{}, f.reactions[id]...)
	return cp, nil
}

func (f *fakeMemoryStore) withAuthor(m *models.Memory) *models.MemoryWithAuthor {
	out := models.MemoryWithAuthor{Memory: *copyMemory(m)}
	if u, ok := f.users.users[m.UserID]; ok {
		out.AuthorName = u.Username
		out.AuthorImageURL = u.ProfileImageURL
	}
	return &out
}

func (f *fakeMemoryStore) list(filter func(*models.Memory) bool) []*models.MemoryWithAuthor {
	var out []*models.MemoryWithAuthor
	var ids []string
	for id, m := range f.memories {
		if filter(m) {
			ids = append(ids, id)
		}
	}
	// Newest first; insertion order breaks ties.
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.memories[ids[i]], f.memories[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return f.seq[ids[i]] > f.seq[ids[j]]
	})
	for _, id := range ids {
		out = append(out, f.withAuthor(f.memories[id]))
	}
	return out
}

func (f *fakeMemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*models.MemoryWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(m *models.Memory) bool { return m.UserID == ownerID }), nil
}

func (f *fakeMemoryStore) ListTimeline(_ context.Context, requesterID string, memberIDs []string) ([]*models.MemoryWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}
	return f.list(func(m *models.Memory) bool {
		return m.UserID == requesterID || (members[m.UserID] && !m.IsPrivate)
	}), nil
}

func (f *fakeMemoryStore) ListAll(_ context.Context) ([]*models.MemoryWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(*models.Memory) bool { return true }), nil
}

func (f *fakeMemoryStore) Update(_ context.Context, memory *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.memories[memory.ID]
	if !ok {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	cp := copyMemory(memory)
	cp.Images = existing.Images
	cp.Comments = existing.Comments
	f.memories[memory.ID] = cp
	return nil
}

func (f *fakeMemoryStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.memories[id]; !ok {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	delete(f.memories, id)
	delete(f.reactions, id)
	return nil
}

func (f *fakeMemoryStore) AddImages(_ context.Context, memoryID string, images []models.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[memoryID]
	if !ok {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	m.Images = append(m.Images, images...)
	return nil
}

func (f *fakeMemoryStore) RemoveImage(_ context.Context, memoryID, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[memoryID]
	if !ok {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	var kept []models.Image
	for _, img := range m.Images {
		if img.ID != imageID {
			kept = append(kept, img)
		}
	}
	m.Images = kept
	return nil
}

func (f *fakeMemoryStore) AddComment(_ context.Context, memoryID string, comment models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[memoryID]
	if !ok {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	m.Comments = append(m.Comments, comment)
	return nil
}

func (f *fakeMemoryStore) GetReaction(_ context.Context, memoryID, userID string) (models.ReactionType, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, re := range f.reactions[memoryID] {
		if re.UserID == userID {
			return re.Type, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeMemoryStore) SetReaction(_ context.Context, memoryID, userID string, typ models.ReactionType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, re := range f.reactions[memoryID] {
		if re.UserID == userID {
			f.reactions[memoryID][i].Type = typ
			return nil
		}
	}
	f.reactions[memoryID] = append(f.reactions[memoryID], models.Reaction{UserID: userID, Type: typ})
	return nil
}

func (f *fakeMemoryStore) RemoveReaction(_ context.Context, memoryID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Reaction
	for _, re := range f.reactions[memoryID] {
		if re.UserID != userID {
			kept = append(kept, re)
		}
	}
	f.reactions[memoryID] = kept
	return nil
}

func (f *fakeMemoryStore) ListReactions(_ context.Context, memoryID string) ([]models.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Reaction{}, f.reactions[memoryID]...), nil
}

func (f *fakeMemoryStore) Count(_ context.Context) (total, private int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.memories {
		total++
		if m.IsPrivate {
			private++
		}
	}
	return total, private, nil
}

// fakeImageStore records uploads and deletions, optionally failing after a
// number of uploads to exercise cleanup paths.
type fakeImageStore struct {
	mu        sync.Mutex
	next      int
	stored    map[string]bool
	deleted   []string
	failAfter int // fail the (failAfter+1)th upload; -1 never fails
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{stored: make(map[string]bool), failAfter: -1}
}

func (f *fakeImageStore) Upload(_ context.Context, _ []byte, _ string) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && f.next >= f.failAfter {
		return models.Image{}, fmt.Errorf("upload failed")
	}
	f.next++
	id := fmt.Sprintf("img-%d", f.next)
	f.stored[id] = true
	return models.Image{ID: id, URL: "https://images.test/" + id}, nil
}

func (f *fakeImageStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: bodyHTML})
	return nil
}
