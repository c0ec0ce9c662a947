package attachments

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

// cidRefPattern captures a whole cid reference, up to the quote, paren, bracket or space that ends it.
var cidRefPattern = regexp.MustCompile(`cid:([^"'\s()<>]+)`)

const (
	maxFilenameLength = 200
	maxUniqueAttempts = 50
)

type attachmentStore struct {
	storage   interfaces.StorageService
	repo      interfaces.EmailAttachmentRepository
	appConfig *config.AppConfig
}

func NewAttachmentStore(storage interfaces.StorageService, repo interfaces.EmailAttachmentRepository, appConfig *config.AppConfig) interfaces.AttachmentStore {
	return &attachmentStore{
		storage:   storage,
		repo:      repo,
		appConfig: appConfig,
	}
}

func (s *attachmentStore) Store(ctx context.Context, emailID string, part dto.ParsedAttachment) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Store")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEmail(span, emailID)

	contentType := utils.ContentTypeOrDefault(part.ContentType)

	filename, err := s.uniqueFilename(ctx, emailID, SanitizeFilename(part.Filename, contentType))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("resolve filename", err)
	}
	span.LogKV("filename", filename, "size", len(part.Content))

	key := ObjectKey(emailID, filename)
	if err := s.storage.Put(ctx, key, part.Content, contentType); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	attachment := &models.EmailAttachment{
		EmailID:     emailID,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(part.Content)),
		R2Key:       key,
		ContentID:   NormalizeContentID(part.ContentID),
	}
	if err := s.repo.Create(ctx, attachment); err != nil {
		tracing.TraceErr(span, err)
		// blob without metadata would never be cleaned up
		if delErr := s.storage.DeleteMany(ctx, []string{key}); delErr != nil {
			tracing.TraceErr(span, delErr)
		}
		return nil, vmailerrors.NewStorageError("save attachment", err)
	}

	return attachment, nil
}

// uniqueFilename appends -1, -2, ... before the extension until the name is free within the email.
func (s *attachmentStore) uniqueFilename(ctx context.Context, emailID, filename string) (string, error) {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	candidate := filename
	for i := 1; i <= maxUniqueAttempts; i++ {
		existing, err := s.repo.GetByEmailAndFilename(ctx, emailID, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	return fmt.Sprintf("%s-%s%s", base, utils.GenerateNanoID(6), ext), nil
}

func (s *attachmentStore) RewriteInline(html string, refs []*models.EmailAttachment) string {
	if html == "" {
		return html
	}
	urls := make(map[string]string, len(refs))
	for _, ref := range refs {
		if ref == nil || ref.ContentID == "" {
			continue
		}
		if _, ok := urls[ref.ContentID]; !ok {
			urls[ref.ContentID] = s.PublicURL(ref.EmailID, ref.Filename)
		}
	}
	if len(urls) == 0 {
		return html
	}
	return cidRefPattern.ReplaceAllStringFunc(html, func(match string) string {
		if u, ok := urls[strings.TrimPrefix(match, "cid:")]; ok {
			return u
		}
		return match
	})
}

func (s *attachmentStore) PublicURL(emailID, filename string) string {
	return s.appConfig.PublicURL(fmt.Sprintf("/api/v1/attachments/%s/%s", emailID, url.PathEscape(filename)))
}

func (s *attachmentStore) Delete(ctx context.Context, refs []*models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref != nil && ref.R2Key != "" {
			keys = append(keys, ref.R2Key)
		}
	}
	span.LogKV("count", len(keys))

	if err := s.storage.DeleteMany(ctx, utils.UniqueStrings(keys)); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// Open returns nil metadata and blob when either is missing.
func (s *attachmentStore) Open(ctx context.Context, emailID, filename string) (*models.EmailAttachment, *dto.BlobObject, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentStore.Open")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEmail(span, emailID)
	span.LogKV("filename", filename)

	attachment, err := s.repo.GetByEmailAndFilename(ctx, emailID, filename)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	key := ObjectKey(emailID, filename)
	if attachment != nil {
		key = attachment.R2Key
	}

	blob, err := s.storage.Get(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	if blob == nil {
		return attachment, nil, nil
	}
	if attachment != nil && attachment.ContentType != "" && blob.ContentType == utils.DefaultContentType {
		blob.ContentType = attachment.ContentType
	}
	return attachment, blob, nil
}

func ObjectKey(emailID, filename string) string {
	return fmt.Sprintf("emails/%s/%s", emailID, filename)
}

// NormalizeContentID strips the angle brackets of a Content-ID header value.
func NormalizeContentID(contentID string) string {
	contentID = strings.TrimSpace(contentID)
	contentID = strings.TrimPrefix(contentID, "<")
	return strings.TrimSuffix(contentID, ">")
}

// SanitizeFilename keeps the last path element, drops control characters and
// falls back to file-<id>.<ext> when nothing usable is left.
func SanitizeFilename(filename, contentType string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(strings.TrimSpace(filename))

	filename = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." || filename == ".." || filename == "/" {
		filename = "file-" + utils.GenerateNanoID(4)
		if ext := utils.ExtensionForContentType(contentType); ext != "" {
			filename += "." + ext
		}
	}

	if len([]rune(filename)) > maxFilenameLength {
		ext := path.Ext(filename)
		if len([]rune(ext)) > 10 {
			ext = ""
		}
		filename = utils.Truncate(strings.TrimSuffix(filename, ext), maxFilenameLength-len([]rune(ext))) + ext
	}
	return filename
}
