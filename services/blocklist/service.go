package blocklist

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

type blocklistGuard struct {
	repo interfaces.BlockedSenderRepository
}

func NewBlocklistGuard(repo interfaces.BlockedSenderRepository) interfaces.BlocklistGuard {
	return &blocklistGuard{repo: repo}
}

// IsBlocked reports whether any candidate matches an exact, "@domain" or "*@domain" entry.
func (g *blocklistGuard) IsBlocked(ctx context.Context, candidates ...string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blocklistGuard.IsBlocked")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	var forms []string
	for _, candidate := range candidates {
		forms = append(forms, Candidates(candidate)...)
	}
	forms = utils.UniqueStrings(forms)
	span.LogKV("forms", strings.Join(forms, ","))

	if len(forms) == 0 {
		return false, nil
	}

	blocked, err := g.repo.ExistsAny(ctx, forms)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, errors.Wrap(err, "blocklist lookup")
	}
	span.LogKV("blocked", blocked)
	return blocked, nil
}

func (g *blocklistGuard) Add(ctx context.Context, entry, reason string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blocklistGuard.Add")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	entry = utils.NormalizeAddress(entry)
	if err := ValidateEntry(entry); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("entry", entry)

	err := g.repo.Add(ctx, &models.BlockedSender{Email: entry, Reason: reason})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (g *blocklistGuard) Remove(ctx context.Context, entry string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blocklistGuard.Remove")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	entry = utils.NormalizeAddress(entry)
	span.LogKV("entry", entry)
	if entry == "" {
		return nil
	}

	if err := g.repo.Remove(ctx, entry); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (g *blocklistGuard) List(ctx context.Context) ([]*models.BlockedSender, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blocklistGuard.List")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	entries, err := g.repo.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return entries, nil
}

// Candidates returns the lookup forms of an address: the address itself, "@domain" and "*@domain".
func Candidates(address string) []string {
	address = utils.NormalizeAddress(address)
	if address == "" {
		return nil
	}
	forms := []string{address}
	if domain := utils.ExtractDomainFromEmail(address); domain != "" {
		forms = append(forms, "@"+domain, "*@"+domain)
	}
	return forms
}

// ValidateEntry accepts "user@domain", "@domain" and "*@domain".
func ValidateEntry(entry string) error {
	if !strings.Contains(entry, "@") {
		return vmailerrors.NewValidationError("email", "must contain @")
	}
	domainPart := entry[strings.LastIndex(entry, "@")+1:]
	if domainPart == "" || strings.ContainsAny(domainPart, " <>") {
		return vmailerrors.NewValidationError("email", "missing domain")
	}
	local := entry[:strings.LastIndex(entry, "@")]
	if local == "" || local == "*" {
		return nil
	}
	if !utils.IsValidAddress(entry) {
		return vmailerrors.NewValidationError("email", "not a valid address")
	}
	return nil
}
