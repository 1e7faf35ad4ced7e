package mailer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quotamail/quotamail/internal/errors"
)

// RecipientResolver maps a quota root to the mailbox addresses that should
// receive the notification. Resolution normally delegates to the user
// directory of the hosting mail server.
type RecipientResolver interface {
	ResolveRecipients(quotaRoot string) ([]string, error)
}

// DirectoryResolver resolves quota roots from static configuration: explicit
// per-root overrides first, then the root itself when it already is an
// address, then root@default-domain.
type DirectoryResolver struct {
	overrides     map[string][]string
	defaultDomain string
}

// NewDirectoryResolver creates a resolver with the given per-root overrides
// and fallback domain. Both may be empty.
func NewDirectoryResolver(overrides map[string][]string, defaultDomain string) *DirectoryResolver {
	copied := make(map[string][]string, len(overrides))
	for root, addrs := range overrides {
		copied[root] = append([]string(nil), addrs...)
	}
	return &DirectoryResolver{overrides: copied, defaultDomain: defaultDomain}
}

// ResolveRecipients maps a quota root to recipient addresses.
func (r *DirectoryResolver) ResolveRecipients(quotaRoot string) ([]string, error) {
	if addrs, ok := r.overrides[quotaRoot]; ok && len(addrs) > 0 {
		out := append([]string(nil), addrs...)
		sort.Strings(out)
		return out, nil
	}

	if strings.Contains(quotaRoot, "@") {
		return []string{quotaRoot}, nil
	}

	if r.defaultDomain != "" {
		return []string{quotaRoot + "@" + r.defaultDomain}, nil
	}

	return nil, &errors.ErrRecipientResolution{
		QuotaRoot: quotaRoot,
		Err:       fmt.Errorf("no override and no default domain configured"),
	}
}

var _ RecipientResolver = (*DirectoryResolver)(nil)
