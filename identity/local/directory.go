package localidp

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
	"github.com/shule-app/shule/identity"
)

// AssignSchool stamps the school id into an account's attribute bag. This is
// the provisioning step run after a school admin approves an account; the
// session core only ever reads the result back out of the bag.
func (p *Provider) AssignSchool(ctx context.Context, email string, school session.TenantID) error {
	if school == 0 {
		return errors.New("cannot assign the zero school id")
	}
	usr, err := p.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	usr, err = p.repo.MergeUserMetadata(ctx, usr.ID, map[string]interface{}{"school_id": int64(school)})
	if err != nil {
		return errors.Wrap(err, "stamping school id")
	}

	// if the provisioned account is the active session, push the change
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess != nil && sess.User != nil && sess.User.ID == usr.ID {
		renewed, err := p.newSession(ctx, usr)
		if err != nil {
			return err
		}
		renewed.RefreshToken = sess.RefreshToken
		p.mu.Lock()
		p.current = renewed
		p.mu.Unlock()
		p.emit(identity.EventUserUpdated, renewed)
	}
	return nil
}
