package session

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"tenant-admin/internal/tenant"
)

// maxAncestorDepth bounds the parent walk; real hierarchies are two or three
// levels deep.
const maxAncestorDepth = 16

// CompanyGetter loads a single company by id.
type CompanyGetter interface {
	GetCompany(ctx context.Context, id string) (tenant.Company, error)
}

// AncestorsEnabled walks the parent chain starting at parentID and reports
// whether every ancestor exists, is enabled and is not deleted. An empty
// parentID is trivially enabled. A cycle or a chain deeper than
// maxAncestorDepth counts as broken.
func AncestorsEnabled(ctx context.Context, store CompanyGetter, parentID string) (bool, error) {
	seen := make(map[string]struct{}, 4)
	for id := parentID; id != ""; {
		if _, dup := seen[id]; dup || len(seen) >= maxAncestorDepth {
			return false, nil
		}
		seen[id] = struct{}{}

		c, err := store.GetCompany(ctx, id)
		if errors.Is(err, tenant.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !c.Enabled || c.Deleted {
			return false, nil
		}
		id = c.ParentID
	}
	return true, nil
}

// FilterEnabledChains keeps the candidates that are usable on their own
// (company enabled and not deleted, membership enabled) and whose whole
// ancestor chain is enabled. Ancestor walks run concurrently; the input order
// is preserved.
func FilterEnabledChains(ctx context.Context, store CompanyGetter, candidates []tenant.CompanyAccess) ([]tenant.CompanyAccess, error) {
	keep := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		if !c.Enabled || c.Deleted || !c.Membership.Enabled {
			continue
		}
		g.Go(func() error {
			ok, err := AncestorsEnabled(gctx, store, c.ParentID)
			if err != nil {
				return err
			}
			keep[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]tenant.CompanyAccess, 0, len(candidates))
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

// checkEnablement applies the enablement cascade to p.Company. A disabled
// active company falls back to the first usable visible company; an enabled
// one must have an enabled ancestor chain and an enabled membership.
func checkEnablement(ctx context.Context, store CompanyGetter, p *Principal) error {
	if !p.Company.Enabled {
		if len(p.Companies) == 0 {
			return ErrAccountInactive
		}
		filtered, err := FilterEnabledChains(ctx, store, p.Companies)
		if err != nil {
			return err
		}
		if len(filtered) == 0 {
			return ErrAccountInactive
		}
		p.Company = filtered[0]
		p.Companies = filtered
		return nil
	}

	if p.Company.ParentID != "" {
		ok, err := AncestorsEnabled(ctx, store, p.Company.ParentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSessionInvalid
		}
	}
	if !p.Company.Membership.Enabled {
		return ErrSessionInvalid
	}
	return nil
}
