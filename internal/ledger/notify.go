package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/money"
	"github.com/openlets/openlets/internal/store"
)

// Notification is one line of a person's activity feed.
type Notification struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifications builds the actor's activity feed for the last days days,
// newest first: records aimed at the actor, resolutions of the actor's
// balances and news posted to the actor's site. days <= 0 uses the
// service default.
func (s *Service) Notifications(ctx context.Context, actor Actor, days int) ([]Notification, error) {
	if days <= 0 {
		days = s.opts.NotificationDays
	}
	since := s.daysAgo(days)
	names := newNamer(s.store)

	recs, err := s.store.ListRecords(ctx, store.RecordFilter{
		TargetID:     actor.PersonID,
		CreatedAfter: since,
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	prs, err := s.store.ListPersonResolutions(ctx, store.ResolutionFilter{
		PersonID:       actor.PersonID,
		ConfirmedAfter: since.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("listing resolutions: %w", err)
	}
	posts, err := s.store.ListNewsPosts(ctx, actor.SiteID, since, 0)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}

	out := make([]Notification, 0, len(recs)+len(prs)+len(posts))
	for _, r := range recs {
		msg, err := recordMessage(ctx, names, r)
		if err != nil {
			return nil, err
		}
		out = append(out, Notification{Message: msg, Time: r.CreatedAt})
	}
	for _, pr := range prs {
		msg, err := resolutionMessage(ctx, names, pr)
		if err != nil {
			return nil, err
		}
		out = append(out, Notification{Message: msg, Time: pr.Resolution.ConfirmedAt})
	}
	for _, p := range posts {
		out = append(out, Notification{
			Message: fmt.Sprintf("%s posted '%s'.", p.Author, p.Title),
			Time:    p.CreatedAt,
		})
	}

	slices.SortStableFunc(out, func(a, b Notification) int {
		return b.Time.Compare(a.Time)
	})
	return out, nil
}

func recordMessage(ctx context.Context, names *namer, r model.TransactionRecord) (string, error) {
	var action string
	switch r.Status() {
	case model.StatusPending:
		action = "created a"
	case model.StatusRejected:
		action = "rejected your"
	default:
		action = "confirmed your"
	}
	creator, err := names.person(ctx, r.CreatorID)
	if err != nil {
		return "", err
	}
	cur, err := names.currency(ctx, r.CurrencyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s transaction for a %s of %s.",
		creator, action, r.TargetTransactionType(), money.FormatCurrency(r.Value, cur)), nil
}

func resolutionMessage(ctx context.Context, names *namer, pr model.PersonResolution) (string, error) {
	other := "nobody"
	if id, ok := pr.OtherPersonID(); ok {
		var err error
		if other, err = names.person(ctx, id); err != nil {
			return "", err
		}
	}
	cur, err := names.currency(ctx, pr.Resolution.CurrencyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your balance with %s was resolved for %s.",
		other, money.FormatCurrency(pr.RelativeValue(), cur)), nil
}

// namer memoizes person names and currencies for one feed.
type namer struct {
	q          store.Queries
	persons    map[int64]string
	currencies map[int64]model.Currency
}

func newNamer(q store.Queries) *namer {
	return &namer{
		q:          q,
		persons:    make(map[int64]string),
		currencies: make(map[int64]model.Currency),
	}
}

func (n *namer) person(ctx context.Context, id int64) (string, error) {
	if name, ok := n.persons[id]; ok {
		return name, nil
	}
	p, err := n.q.GetPerson(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loading person %d: %w", id, err)
	}
	n.persons[id] = p.Name
	return p.Name, nil
}

func (n *namer) currency(ctx context.Context, id int64) (model.Currency, error) {
	if c, ok := n.currencies[id]; ok {
		return c, nil
	}
	c, err := n.q.GetCurrency(ctx, id)
	if err != nil {
		return model.Currency{}, fmt.Errorf("loading currency %d: %w", id, err)
	}
	n.currencies[id] = *c
	return *c, nil
}
