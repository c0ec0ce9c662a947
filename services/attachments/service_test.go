package attachments

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/fakes"
	"github.com/customeros/vmail/internal/models"
)

func newTestStore() (*attachmentStore, *fakes.Storage, *fakes.EmailAttachmentRepository) {
	storage := fakes.NewStorage()
	repo := fakes.NewEmailAttachmentRepository()
	store := NewAttachmentStore(storage, repo, &config.AppConfig{WorkerURL: "https://mail.example.com/"})
	return store.(*attachmentStore), storage, repo
}

func TestStore_UploadsBlobAndMetadata(t *testing.T) {
	store, storage, repo := newTestStore()

	att, err := store.Store(context.Background(), "mail_1", dto.ParsedAttachment{
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		ContentID:   "<logo@x>",
		Content:     []byte("%PDF"),
	})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "emails/mail_1/report.pdf", att.R2Key)
	assert.Equal(t, "logo@x", att.ContentID)
	assert.Equal(t, int64(4), att.Size)
	assert.True(t, storage.Has("emails/mail_1/report.pdf"))
	assert.Equal(t, "application/pdf", storage.Objects["emails/mail_1/report.pdf"].ContentType)
	assert.Len(t, repo.Attachments, 1)
}

func TestStore_DefaultFilenameAndContentType(t *testing.T) {
	store, storage, _ := newTestStore()

	att, err := store.Store(context.Background(), "mail_1", dto.ParsedAttachment{Content: []byte("x")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(att.Filename, "file-"))
	assert.Len(t, att.Filename, len("file-")+4)
	assert.Equal(t, "application/octet-stream", att.ContentType)
	assert.Equal(t, "application/octet-stream", storage.Objects[att.R2Key].ContentType)
}

func TestStore_DefaultFilenameGetsExtension(t *testing.T) {
	store, _, _ := newTestStore()

	att, err := store.Store(context.Background(), "mail_1", dto.ParsedAttachment{ContentType: "image/png", Content: []byte("x")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(att.Filename, ".png"))
}

func TestStore_DuplicateNamesAreMadeUnique(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	first, err := store.Store(ctx, "mail_1", dto.ParsedAttachment{Filename: "a.txt", Content: []byte("1")})
	require.NoError(t, err)
	second, err := store.Store(ctx, "mail_1", dto.ParsedAttachment{Filename: "a.txt", Content: []byte("2")})
	require.NoError(t, err)
	other, err := store.Store(ctx, "mail_2", dto.ParsedAttachment{Filename: "a.txt", Content: []byte("3")})
	require.NoError(t, err)

	assert.Equal(t, "a.txt", first.Filename)
	assert.Equal(t, "a-1.txt", second.Filename)
	assert.Equal(t, "a.txt", other.Filename)
	assert.NotEqual(t, first.R2Key, second.R2Key)
}

func TestStore_BlobFailure(t *testing.T) {
	store, storage, repo := newTestStore()
	storage.PutErr = fakes.ErrInjected

	_, err := store.Store(context.Background(), "mail_1", dto.ParsedAttachment{Filename: "a.txt"})
	require.Error(t, err)
	assert.Empty(t, repo.Attachments)
}

func TestStore_MetadataFailureRemovesBlob(t *testing.T) {
	store, storage, repo := newTestStore()
	repo.CreateErr = fakes.ErrInjected

	_, err := store.Store(context.Background(), "mail_1", dto.ParsedAttachment{Filename: "a.txt", Content: []byte("x")})
	require.Error(t, err)
	assert.True(t, vmailerrors.IsStorageError(err))
	assert.False(t, storage.Has("emails/mail_1/a.txt"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd", ""))
	assert.Equal(t, "evil.exe", SanitizeFilename(`C:\temp\evil.exe`, ""))
	assert.Equal(t, "name.txt", SanitizeFilename("na\x00me.txt", ""))
	assert.True(t, strings.HasPrefix(SanitizeFilename("..", ""), "file-"))

	long := strings.Repeat("a", 300) + ".pdf"
	sanitized := SanitizeFilename(long, "")
	assert.Len(t, []rune(sanitized), maxFilenameLength)
	assert.True(t, strings.HasSuffix(sanitized, ".pdf"))
}

func TestRewriteInline(t *testing.T) {
	store, _, _ := newTestStore()
	refs := []*models.EmailAttachment{
		{EmailID: "mail_1", Filename: "logo one.png", ContentID: "logo@x"},
		{EmailID: "mail_1", Filename: "plain.txt"},
	}

	html := `<img src="cid:logo@x"><img src="cid:other@x">`
	out := store.RewriteInline(html, refs)

	assert.Equal(t, `<img src="https://mail.example.com/api/v1/attachments/mail_1/logo%20one.png"><img src="cid:other@x">`, out)
}

func TestRewriteInline_PrefixSharingIDs(t *testing.T) {
	store, _, _ := newTestStore()
	refs := []*models.EmailAttachment{
		{EmailID: "mail_1", Filename: "a.png", ContentID: "img1"},
		{EmailID: "mail_1", Filename: "b.png", ContentID: "img10"},
	}

	out := store.RewriteInline(`<img src="cid:img1"><img src='cid:img10'><div style="background:url(cid:img1)">`, refs)

	assert.Equal(t, `<img src="https://mail.example.com/api/v1/attachments/mail_1/a.png">`+
		`<img src='https://mail.example.com/api/v1/attachments/mail_1/b.png'>`+
		`<div style="background:url(https://mail.example.com/api/v1/attachments/mail_1/a.png)">`, out)
}

func TestPublicURL(t *testing.T) {
	store, _, _ := newTestStore()
	assert.Equal(t, "https://mail.example.com/api/v1/attachments/mail_1/a%2Fb.txt", store.PublicURL("mail_1", "a/b.txt"))
}

func TestDelete_SingleBulkCall(t *testing.T) {
	store, storage, _ := newTestStore()
	storage.Objects["emails/mail_1/a"] = &dto.BlobObject{}

	err := store.Delete(context.Background(), []*models.EmailAttachment{
		{R2Key: "emails/mail_1/a"},
		{R2Key: "emails/mail_1/missing"},
	})
	require.NoError(t, err)
	require.Len(t, storage.DeleteCalls, 1)
	assert.ElementsMatch(t, []string{"emails/mail_1/a", "emails/mail_1/missing"}, storage.DeleteCalls[0])
	assert.False(t, storage.Has("emails/mail_1/a"))
}

func TestDelete_NothingToDelete(t *testing.T) {
	store, storage, _ := newTestStore()
	require.NoError(t, store.Delete(context.Background(), nil))
	assert.Empty(t, storage.DeleteCalls)
}

func TestOpen(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	_, err := store.Store(ctx, "mail_1", dto.ParsedAttachment{Filename: "a.csv", ContentType: "text/csv", Content: []byte("a,b")})
	require.NoError(t, err)

	att, blob, err := store.Open(ctx, "mail_1", "a.csv")
	require.NoError(t, err)
	require.NotNil(t, att)
	require.NotNil(t, blob)
	assert.Equal(t, []byte("a,b"), blob.Body)
	assert.Equal(t, "text/csv", blob.ContentType)

	att, blob, err = store.Open(ctx, "mail_1", "missing.csv")
	require.NoError(t, err)
	assert.Nil(t, att)
	assert.Nil(t, blob)
}
