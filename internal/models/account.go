package models

import "time"

// Account is the tagged variant view of a Person. A person is exactly one of
// ManagedProfile or IndependentAccount; the variant is derived from
// managed_by and never stored separately.
type Account interface {
	Person() *Person
	isAccount()
}

// ManagedProfile is a child profile: no email, no credential, managed by
// another person.
type ManagedProfile struct {
	p *Person
}

// IndependentAccount is a person who can log in on their own.
type IndependentAccount struct {
	p *Person
}

func (m ManagedProfile) Person() *Person     { return m.p }
func (a IndependentAccount) Person() *Person { return a.p }

func (ManagedProfile) isAccount()     {}
func (IndependentAccount) isAccount() {}

// ManagerID returns the id of the managing person.
func (m ManagedProfile) ManagerID() int64 {
	return *m.p.ManagedByID
}

// Variant returns the tagged variant for the person.
func (p *Person) Variant() Account {
	if p.ManagedByID != nil {
		return ManagedProfile{p: p}
	}
	return IndependentAccount{p: p}
}

// Promote turns the child profile into an independent account. The person
// keeps its id; managed_by is cleared and the email is set. The caller is
// responsible for issuing the credential-setup invitation.
func (m ManagedProfile) Promote(actorID int64, email string, at time.Time) IndependentAccount {
	p := m.p
	normalized := NormalizeEmail(email)
	p.ManagedByID = nil
	p.Email = &normalized
	p.PasswordHash = nil
	p.PromotedFromChild = true
	p.PromotedAt = &at
	p.PromotedByID = &actorID
	p.UpdatedAt = at
	return IndependentAccount{p: p}
}
