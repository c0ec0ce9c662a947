package retention

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/fakes"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/services/attachments"
)

type fixture struct {
	emails   *fakes.EmailRepository
	attRepo  *fakes.EmailAttachmentRepository
	storage  *fakes.Storage
	deleter  interfaces.EmailDeleter
	janitor  interfaces.RetentionJanitor
	emailIDs []string
}

// newFixture stores n emails, each with one attachment blob, oldest first.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		emails:  fakes.NewEmailRepository(),
		attRepo: fakes.NewEmailAttachmentRepository(),
		storage: fakes.NewStorage(),
	}
	f.emails.Attachments = f.attRepo
	store := attachments.NewAttachmentStore(f.storage, f.attRepo, &config.AppConfig{WorkerURL: "https://w"})
	f.deleter = NewEmailDeleter(f.emails, f.attRepo, store)
	f.janitor = NewRetentionJanitor(logger.NewNopLogger(), f.emails, f.deleter)

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("mail_%d", i)
		require.NoError(t, f.emails.Create(ctx, &models.Email{
			ID: id, MessageFrom: "a@x.com", MessageTo: "box@vmail.dev", From: models.Address{Address: "a@x.com"},
		}))
		_, err := store.Store(ctx, id, dto.ParsedAttachment{Filename: "doc.txt", ContentType: "text/plain", Content: []byte("x")})
		require.NoError(t, err)
		f.emailIDs = append(f.emailIDs, id)
	}
	return f
}

func TestRun_KeepsNewest(t *testing.T) {
	f := newFixture(t, 5)

	result, err := f.janitor.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 3, result.Deleted)
	assert.Empty(t, result.Failed)

	require.Len(t, f.emails.Emails, 2)
	assert.Equal(t, "mail_3", f.emails.Emails[0].ID)
	assert.Equal(t, "mail_4", f.emails.Emails[1].ID)

	// oldest first, one email per delete
	assert.Equal(t, [][]string{{"mail_0"}, {"mail_1"}, {"mail_2"}}, f.emails.DeletedBatches)
	assert.False(t, f.storage.Has(attachments.ObjectKey("mail_0", "doc.txt")))
	assert.True(t, f.storage.Has(attachments.ObjectKey("mail_4", "doc.txt")))
	assert.Len(t, f.attRepo.Attachments, 2)
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.janitor.Run(context.Background(), 1)
	require.NoError(t, err)

	result, err := f.janitor.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)
	assert.Equal(t, 0, result.Deleted)
	assert.Len(t, f.emails.Emails, 1)
}

func TestRun_BlobFailureSkipsItem(t *testing.T) {
	f := newFixture(t, 3)
	f.storage.DeleteErr = fakes.ErrInjected

	result, err := f.janitor.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, []string{"mail_0", "mail_1"}, result.Failed)

	// rows survive so the next run can retry
	assert.Len(t, f.emails.Emails, 3)
	assert.Len(t, f.attRepo.Attachments, 3)
}

func TestRun_InvalidMax(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.janitor.Run(context.Background(), 0)
	assert.True(t, vmailerrors.IsValidationError(err))
}

func TestDeleteEmails_Bulk(t *testing.T) {
	f := newFixture(t, 3)

	err := f.deleter.DeleteEmails(context.Background(), []string{"mail_0", "mail_2"})
	require.NoError(t, err)

	require.Len(t, f.emails.Emails, 1)
	assert.Equal(t, "mail_1", f.emails.Emails[0].ID)
	require.Len(t, f.storage.DeleteCalls, 1)
	assert.ElementsMatch(t, []string{
		attachments.ObjectKey("mail_0", "doc.txt"),
		attachments.ObjectKey("mail_2", "doc.txt"),
	}, f.storage.DeleteCalls[0])
}

func TestDeleteEmails_RowFailureIsStorageError(t *testing.T) {
	f := newFixture(t, 1)
	f.emails.DeleteErr = fakes.ErrInjected

	err := f.deleter.DeleteEmails(context.Background(), []string{"mail_0"})
	assert.True(t, vmailerrors.IsStorageError(err))
	assert.NoError(t, f.deleter.DeleteEmails(context.Background(), nil))
}
