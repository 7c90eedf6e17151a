package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploads(n int) []ImageUpload {
	out := make([]ImageUpload, n)
	for i := range out {
		out[i] = ImageUpload{Data: []byte("fake-image-bytes"), ContentType: "image/jpeg"}
	}
	return out
}

func (e *testEnv) createMemory(t *testing.T, userID, title string, private bool) *models.Memory {
	t.Helper()
	memory, err := e.memorySvc.CreateMemory(context.Background(), userID, CreateMemoryRequest{
		Title:       title,
		LifeStage:   models.StageSchool,
		Description: "a memory",
		Date:        time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		IsPrivate:   private,
		Images:      uploads(1),
	})
	require.NoError(t, err)
	return memory
}

func TestCreateMemoryRequiresImages(t *testing.T) {
	env := newTestEnv()
	alice := env.register(t, "alice", "alice@example.com")

	_, err := env.memorySvc.CreateMemory(context.Background(), alice.ID, CreateMemoryRequest{
		Title:     "no images",
		LifeStage: models.StageCareer,
		Date:      time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestCreateMemoryImageCap(t *testing.T) {
	env := newTestEnv()
	alice := env.register(t, "alice", "alice@example.com")

	_, err := env.memorySvc.CreateMemory(context.Background(), alice.ID, CreateMemoryRequest{
		Title:     "too many",
		LifeStage: models.StageCareer,
		Date:      time.Now(),
		Images:    uploads(11),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Empty(t, env.images.stored)
}

func TestCreateMemoryUploadFailureCleansUp(t *testing.T) {
	env := newTestEnv()
	alice := env.register(t, "alice", "alice@example.com")

	// Third upload fails; the first two must be removed again.
	env.images.failAfter = 2
	_, err := env.memorySvc.CreateMemory(context.Background(), alice.ID, CreateMemoryRequest{
		Title:     "flaky storage",
		LifeStage: models.StageCollege,
		Date:      time.Now(),
		Images:    uploads(3),
	})
	require.Error(t, err)
	assert.Empty(t, env.images.stored)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, env.images.deleted)
}

func TestGetMemoryPrivateHiddenFromCircle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleContributor))

	private := env.createMemory(t, alice.ID, "diary", true)

	// Private is owner-only, whatever role the member holds.
	_, err := env.memorySvc.GetMemory(ctx, bob.ID, private.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	got, err := env.memorySvc.GetMemory(ctx, alice.ID, private.ID)
	require.NoError(t, err)
	assert.Equal(t, "diary", got.Title)
}

func TestGetMemoryPublicVisibleToAnyone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	stranger := env.register(t, "eve", "eve@example.com")

	public := env.createMemory(t, alice.ID, "picnic", false)

	got, err := env.memorySvc.GetMemory(ctx, stranger.ID, public.ID)
	require.NoError(t, err)
	assert.Equal(t, "picnic", got.Title)
}

func TestFamilyTimeline(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	carol := env.register(t, "carol", "carol@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleViewer))

	env.createMemory(t, alice.ID, "alice-public", false)
	env.createMemory(t, alice.ID, "alice-private", true)
	env.createMemory(t, bob.ID, "bob-public", false)
	env.createMemory(t, bob.ID, "bob-private", true)
	env.createMemory(t, carol.ID, "carol-public", false)

	timeline, err := env.memorySvc.FamilyTimeline(ctx, alice.ID)
	require.NoError(t, err)

	titles := make([]string, len(timeline))
	for i, m := range timeline {
		titles[i] = m.Title
	}
	// Own memories regardless of visibility, members' public ones, nothing
	// from outside the circle. Newest first.
	assert.Equal(t, []string{"bob-public", "alice-private", "alice-public"}, titles)
}

func TestUpdateMemoryByContributor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleContributor))

	memory := env.createMemory(t, alice.ID, "original", false)

	updated, err := env.memorySvc.UpdateMemory(ctx, bob.ID, memory.ID, UpdateMemoryRequest{Title: "edited by bob"})
	require.NoError(t, err)
	assert.Equal(t, "edited by bob", updated.Title)
	assert.Equal(t, alice.ID, updated.UserID)
}

func TestUpdateMemoryForbiddenAfterDemotion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleContributor))

	memory := env.createMemory(t, alice.ID, "original", false)

	_, err := env.memorySvc.UpdateMemory(ctx, bob.ID, memory.ID, UpdateMemoryRequest{Title: "first edit"})
	require.NoError(t, err)

	require.NoError(t, env.circleSvc.UpdateRole(ctx, alice.ID, bob.ID, models.RoleCommenter))

	_, err = env.memorySvc.UpdateMemory(ctx, bob.ID, memory.ID, UpdateMemoryRequest{Title: "second edit"})
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestUpdateMemoryImageCap(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")

	memory, err := env.memorySvc.CreateMemory(ctx, alice.ID, CreateMemoryRequest{
		Title:     "full album",
		LifeStage: models.StageSchool,
		Date:      time.Now(),
		Images:    uploads(9),
	})
	require.NoError(t, err)

	_, err = env.memorySvc.UpdateMemory(ctx, alice.ID, memory.ID, UpdateMemoryRequest{AddImages: uploads(2)})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	// Removing one frees room for the addition.
	_, err = env.memorySvc.UpdateMemory(ctx, alice.ID, memory.ID, UpdateMemoryRequest{
		RemoveImageIDs: []string{memory.Images[0].ID},
		AddImages:      uploads(2),
	})
	require.NoError(t, err)
	assert.Contains(t, env.images.deleted, memory.Images[0].ID)
}

func TestUpdateMemoryRejectsForeignImageRemoval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleContributor))

	shared := env.createMemory(t, alice.ID, "shared", false)
	other := env.createMemory(t, bob.ID, "bobs own", false)
	victim := other.Images[0].ID

	// Editing one memory must not be able to delete another memory's asset.
	_, err := env.memorySvc.UpdateMemory(ctx, bob.ID, shared.ID, UpdateMemoryRequest{
		RemoveImageIDs: []string{victim},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.NotContains(t, env.images.deleted, victim)

	got, err := env.memorySvc.GetMemory(ctx, bob.ID, other.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.Equal(t, victim, got.Images[0].ID)
}

func TestDeleteMemoryRemovesStoredImages(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")

	memory, err := env.memorySvc.CreateMemory(ctx, alice.ID, CreateMemoryRequest{
		Title:     "to delete",
		LifeStage: models.StageSchool,
		Date:      time.Now(),
		Images:    uploads(2),
	})
	require.NoError(t, err)

	require.NoError(t, env.memorySvc.DeleteMemory(ctx, alice.ID, memory.ID))
	assert.Empty(t, env.images.stored)

	_, err = env.memorySvc.GetMemory(ctx, alice.ID, memory.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteMemoryForbiddenForViewer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleViewer))

	memory := env.createMemory(t, alice.ID, "keep", false)

	err := env.memorySvc.DeleteMemory(ctx, bob.ID, memory.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestAddCommentGating(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	viewer := env.register(t, "bob", "bob@example.com")
	commenter := env.register(t, "carol", "carol@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, viewer.ID, models.RoleViewer))
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, commenter.ID, models.RoleCommenter))

	memory := env.createMemory(t, alice.ID, "commentable", false)

	_, err := env.memorySvc.AddComment(ctx, viewer.ID, memory.ID, "nice")
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	comment, err := env.memorySvc.AddComment(ctx, commenter.ID, memory.ID, "  lovely day  ")
	require.NoError(t, err)
	assert.Equal(t, "lovely day", comment.Text)

	// The owner always can.
	_, err = env.memorySvc.AddComment(ctx, alice.ID, memory.ID, "thanks")
	require.NoError(t, err)

	got, err := env.memorySvc.GetMemory(ctx, alice.ID, memory.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 2)
}

func TestAddCommentValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	memory := env.createMemory(t, alice.ID, "strict", false)

	_, err := env.memorySvc.AddComment(ctx, alice.ID, memory.ID, "   ")
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = env.memorySvc.AddComment(ctx, alice.ID, memory.ID, strings.Repeat("x", 501))
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = env.memorySvc.AddComment(ctx, alice.ID, memory.ID, strings.Repeat("x", 500))
	require.NoError(t, err)

	// The limit counts characters, not bytes.
	_, err = env.memorySvc.AddComment(ctx, alice.ID, memory.ID, strings.Repeat("é", 500))
	require.NoError(t, err)

	_, err = env.memorySvc.AddComment(ctx, alice.ID, memory.ID, strings.Repeat("é", 501))
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestToggleReaction(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	memory := env.createMemory(t, alice.ID, "reactions", false)

	// No reaction yet: toggling adds it.
	summary, err := env.memorySvc.ToggleReaction(ctx, alice.ID, memory.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[models.ReactionLike])
	assert.Equal(t, models.ReactionLike, summary.UserReaction)

	// Same type again: cleared.
	summary, err = env.memorySvc.ToggleReaction(ctx, alice.ID, memory.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts[models.ReactionLike])
	assert.Empty(t, summary.UserReaction)

	// From empty, a different type simply lands.
	summary, err = env.memorySvc.ToggleReaction(ctx, alice.ID, memory.ID, models.ReactionSmile)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[models.ReactionSmile])
	assert.Equal(t, models.ReactionSmile, summary.UserReaction)

	// A different type replaces the existing one, never a second record.
	summary, err = env.memorySvc.ToggleReaction(ctx, alice.ID, memory.ID, models.ReactionHeart)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts[models.ReactionSmile])
	assert.Equal(t, 1, summary.Counts[models.ReactionHeart])
	assert.Equal(t, models.ReactionHeart, summary.UserReaction)

	reactions, err := env.memories.ListReactions(ctx, memory.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 1)
}

func TestToggleReactionRequiresCommentAccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	viewer := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, viewer.ID, models.RoleViewer))

	memory := env.createMemory(t, alice.ID, "guarded", false)

	_, err := env.memorySvc.ToggleReaction(ctx, viewer.ID, memory.ID, models.ReactionHeart)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestToggleReactionCountsPerUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")
	require.NoError(t, env.circleSvc.EstablishRelation(ctx, alice.ID, bob.ID, models.RoleCommenter))

	memory := env.createMemory(t, alice.ID, "popular", false)

	_, err := env.memorySvc.ToggleReaction(ctx, alice.ID, memory.ID, models.ReactionHeart)
	require.NoError(t, err)
	summary, err := env.memorySvc.ToggleReaction(ctx, bob.ID, memory.ID, models.ReactionHeart)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts[models.ReactionHeart])
	assert.Equal(t, models.ReactionHeart, summary.UserReaction)
}
