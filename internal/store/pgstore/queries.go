package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

type queries struct {
	db dbtx
}

// Persons.

func (q *queries) CreatePerson(ctx context.Context, p *model.Person) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO persons (name, default_currency_id)
		VALUES ($1, $2)
		RETURNING id`, p.Name, p.DefaultCurrencyID).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating person: %w", mapErr(err))
	}
	return nil
}

func (q *queries) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	var p model.Person
	err := q.db.QueryRow(ctx, `
		SELECT id, name, default_currency_id FROM persons WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.DefaultCurrencyID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (q *queries) UpdatePerson(ctx context.Context, p *model.Person) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE persons SET name = $2, default_currency_id = $3 WHERE id = $1`,
		p.ID, p.Name, p.DefaultCurrencyID)
	if err != nil {
		return fmt.Errorf("updating person: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Currencies.

const currencyColumns = `id, name, description, decimal_places, is_default, time_created`

func scanCurrency(row pgx.Row) (model.Currency, error) {
	var c model.Currency
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.DecimalPlaces, &c.Default, &c.CreatedAt)
	return c, err
}

func (q *queries) CreateCurrency(ctx context.Context, c *model.Currency) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO currencies (name, description, decimal_places, is_default, time_created)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, c.Name, c.Description, c.DecimalPlaces, c.Default, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("creating currency: %w", mapErr(err))
	}
	return nil
}

func (q *queries) GetCurrency(ctx context.Context, id int64) (*model.Currency, error) {
	c, err := scanCurrency(q.db.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (q *queries) ListCurrencies(ctx context.Context) ([]model.Currency, error) {
	rows, err := q.db.Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing currencies: %w", err)
	}
	defer rows.Close()

	var out []model.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) ClearDefaultCurrency(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `UPDATE currencies SET is_default = false WHERE is_default`)
	if err != nil {
		return fmt.Errorf("clearing default currency: %w", err)
	}
	return nil
}

// Balances.

func (q *queries) balancePersons(ctx context.Context, balanceID int64, lock bool) ([]model.PersonBalance, error) {
	sql := `SELECT id, person_id, balance_id, credited FROM person_balances WHERE balance_id = $1 ORDER BY id`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.db.Query(ctx, sql, balanceID)
	if err != nil {
		return nil, fmt.Errorf("loading balance persons: %w", err)
	}
	defer rows.Close()

	var out []model.PersonBalance
	for rows.Next() {
		var pb model.PersonBalance
		if err := rows.Scan(&pb.ID, &pb.PersonID, &pb.BalanceID, &pb.Credited); err != nil {
			return nil, fmt.Errorf("scanning balance person: %w", err)
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

func (q *queries) lockedBalance(ctx context.Context, sql string, args ...any) (*model.Balance, error) {
	var b model.Balance
	err := q.db.QueryRow(ctx, sql, args...).Scan(&b.ID, &b.CurrencyID, &b.Value, &b.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	b.Persons, err = q.balancePersons(ctx, b.ID, true)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *queries) FindBalance(ctx context.Context, a, b, currencyID int64) (*model.Balance, error) {
	return q.lockedBalance(ctx, `
		SELECT id, currency_id, value, time_updated FROM balances
		WHERE currency_id = $1 AND pair_key = $2
		FOR UPDATE`, currencyID, model.PairKey(a, b))
}

func (q *queries) GetBalance(ctx context.Context, id int64) (*model.Balance, error) {
	return q.lockedBalance(ctx, `
		SELECT id, currency_id, value, time_updated FROM balances
		WHERE id = $1
		FOR UPDATE`, id)
}

func (q *queries) CreateBalance(ctx context.Context, b *model.Balance) error {
	if len(b.Persons) != 2 {
		return fmt.Errorf("creating balance: need 2 persons, got %d", len(b.Persons))
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	key := model.PairKey(b.Persons[0].PersonID, b.Persons[1].PersonID)
	err := q.db.QueryRow(ctx, `
		INSERT INTO balances (currency_id, pair_key, value, time_updated)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, b.CurrencyID, key, b.Value, b.UpdatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("creating balance: %w", mapErr(err))
	}
	for i := range b.Persons {
		pb := &b.Persons[i]
		pb.BalanceID = b.ID
		err := q.db.QueryRow(ctx, `
			INSERT INTO person_balances (person_id, balance_id, credited)
			VALUES ($1, $2, $3)
			RETURNING id`, pb.PersonID, pb.BalanceID, pb.Credited).Scan(&pb.ID)
		if err != nil {
			return fmt.Errorf("creating balance person: %w", mapErr(err))
		}
	}
	return nil
}

func (q *queries) SaveBalance(ctx context.Context, b *model.Balance) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE balances SET value = $2, time_updated = $3 WHERE id = $1`, b.ID, b.Value, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving balance: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	for _, pb := range b.Persons {
		tag, err := q.db.Exec(ctx, `
			UPDATE person_balances SET credited = $3 WHERE id = $1 AND balance_id = $2`,
			pb.ID, b.ID, pb.Credited)
		if err != nil {
			return fmt.Errorf("saving balance person: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("saving balance %d: person row %d: %w", b.ID, pb.ID, store.ErrNotFound)
		}
	}
	return nil
}

func (q *queries) ListBalances(ctx context.Context, f store.BalanceFilter) ([]model.Balance, error) {
	var w where
	w.add("pb.person_id = %s", f.PersonID)
	if !f.IncludeBalanced {
		w.add("b.value <> 0")
	}
	if f.Credited != nil {
		w.add("pb.credited = %s", *f.Credited)
	}
	rows, err := q.db.Query(ctx, `
		SELECT b.id, b.currency_id, b.value, b.time_updated
		FROM person_balances pb JOIN balances b ON b.id = pb.balance_id`+w.String()+`
		ORDER BY b.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("listing balances: %w", err)
	}
	var out []model.Balance
	for rows.Next() {
		var b model.Balance
		if err := rows.Scan(&b.ID, &b.CurrencyID, &b.Value, &b.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning balance: %w", err)
		}
		out = append(out, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing balances: %w", err)
	}

	for i := range out {
		out[i].Persons, err = q.balancePersons(ctx, out[i].ID, false)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Transactions and records.

func (q *queries) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO transactions (time_confirmed) VALUES ($1) RETURNING id`, t.ConfirmedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", mapErr(err))
	}
	return nil
}

func scanRecord(row pgx.Row) (model.TransactionRecord, error) {
	var r model.TransactionRecord
	err := row.Scan(&r.ID, &r.CreatorID, &r.TargetID, &r.CurrencyID, &r.Value,
		&r.FromReceiver, &r.Rejected, &r.TransactionTime, &r.CreatedAt, &r.Notes,
		&r.TransactionID, &r.ConfirmedAt)
	return r, err
}

func (q *queries) CreateRecord(ctx context.Context, r *model.TransactionRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO transaction_records (
			creator_person_id, target_person_id, currency_id, value, from_receiver,
			rejected, transaction_time, time_created, notes, transaction_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		r.CreatorID, r.TargetID, r.CurrencyID, r.Value, r.FromReceiver,
		r.Rejected, r.TransactionTime, r.CreatedAt, r.Notes, r.TransactionID).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("creating record: %w", mapErr(err))
	}
	if r.TransactionID != nil {
		err := q.db.QueryRow(ctx, `SELECT time_confirmed FROM transactions WHERE id = $1`, *r.TransactionID).
			Scan(&r.ConfirmedAt)
		if err != nil {
			return fmt.Errorf("loading record transaction: %w", mapErr(err))
		}
	}
	return nil
}

func (q *queries) GetRecord(ctx context.Context, id int64) (*model.TransactionRecord, error) {
	r, err := scanRecord(q.db.QueryRow(ctx, `SELECT `+recordColumns+recordFrom+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (q *queries) ClaimPendingRecord(ctx context.Context, id, targetID int64) (*model.TransactionRecord, error) {
	r, err := scanRecord(q.db.QueryRow(ctx, `
		SELECT `+recordColumns+recordFrom+`
		WHERE r.id = $1 AND r.target_person_id = $2
		  AND r.transaction_id IS NULL AND NOT r.rejected
		FOR UPDATE OF r`, id, targetID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (q *queries) LinkRecord(ctx context.Context, id, transactionID int64) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE transaction_records SET transaction_id = $2
		WHERE id = $1 AND transaction_id IS NULL AND NOT rejected`, id, transactionID)
	if err != nil {
		return fmt.Errorf("linking record: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) RejectRecord(ctx context.Context, id, targetID int64) (*model.TransactionRecord, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE transaction_records SET rejected = true
		WHERE id = $1 AND target_person_id = $2 AND transaction_id IS NULL AND NOT rejected`, id, targetID)
	if err != nil {
		return nil, fmt.Errorf("rejecting record: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return q.GetRecord(ctx, id)
}

func (q *queries) ListRecords(ctx context.Context, f store.RecordFilter) ([]model.TransactionRecord, error) {
	sql, args := recordQuery(f)
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) CountRecords(ctx context.Context, creatorID int64) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM transaction_records WHERE creator_person_id = $1`, creatorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Resolutions.

func (q *queries) CreateResolution(ctx context.Context, r *model.Resolution) error {
	if r.ConfirmedAt.IsZero() {
		r.ConfirmedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO resolutions (currency_id, value, time_confirmed)
		VALUES ($1, $2, $3)
		RETURNING id`, r.CurrencyID, r.Value, r.ConfirmedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("creating resolution: %w", mapErr(err))
	}
	for i := range r.Persons {
		pr := &r.Persons[i]
		pr.ResolutionID = r.ID
		err := q.db.QueryRow(ctx, `
			INSERT INTO person_resolutions (person_id, resolution_id, credited)
			VALUES ($1, $2, $3)
			RETURNING id`, pr.PersonID, pr.ResolutionID, pr.Credited).Scan(&pr.ID)
		if err != nil {
			return fmt.Errorf("creating resolution person: %w", mapErr(err))
		}
	}
	return nil
}

func (q *queries) ListPersonResolutions(ctx context.Context, f store.ResolutionFilter) ([]model.PersonResolution, error) {
	sql, args := personResolutionQuery(f)
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing resolutions: %w", err)
	}

	var out []model.PersonResolution
	resolutions := make(map[int64]*model.Resolution)
	var ids []int64
	for rows.Next() {
		var pr model.PersonResolution
		res := &model.Resolution{}
		if err := rows.Scan(&pr.ID, &pr.PersonID, &pr.ResolutionID, &pr.Credited,
			&res.CurrencyID, &res.Value, &res.ConfirmedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning resolution: %w", err)
		}
		res.ID = pr.ResolutionID
		if existing, ok := resolutions[res.ID]; ok {
			res = existing
		} else {
			resolutions[res.ID] = res
			ids = append(ids, res.ID)
		}
		pr.Resolution = res
		out = append(out, pr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing resolutions: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	prows, err := q.db.Query(ctx, `
		SELECT id, person_id, resolution_id, credited FROM person_resolutions
		WHERE resolution_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("loading resolution persons: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p model.PersonResolution
		if err := prows.Scan(&p.ID, &p.PersonID, &p.ResolutionID, &p.Credited); err != nil {
			return nil, fmt.Errorf("scanning resolution person: %w", err)
		}
		res := resolutions[p.ResolutionID]
		res.Persons = append(res.Persons, p)
	}
	return out, prows.Err()
}

// Exchange rates.

func (q *queries) CreateExchangeRate(ctx context.Context, r *model.ExchangeRate) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO exchange_rates (person_id, source_currency_id, dest_currency_id, source_rate, dest_rate, time_created)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.PersonID, r.SourceCurrencyID, r.DestCurrencyID, r.SourceRate, r.DestRate, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("creating exchange rate: %w", mapErr(err))
	}
	return nil
}

func (q *queries) ListExchangeRates(ctx context.Context, personID int64) ([]model.ExchangeRate, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, person_id, source_currency_id, dest_currency_id, source_rate, dest_rate, time_created
		FROM exchange_rates WHERE person_id = $1 ORDER BY id`, personID)
	if err != nil {
		return nil, fmt.Errorf("listing exchange rates: %w", err)
	}
	defer rows.Close()

	var out []model.ExchangeRate
	for rows.Next() {
		var r model.ExchangeRate
		if err := rows.Scan(&r.ID, &r.PersonID, &r.SourceCurrencyID, &r.DestCurrencyID,
			&r.SourceRate, &r.DestRate, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) DeleteExchangeRate(ctx context.Context, id, personID int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM exchange_rates WHERE id = $1 AND person_id = $2`, id, personID)
	if err != nil {
		return fmt.Errorf("deleting exchange rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// News.

func (q *queries) CreateNewsPost(ctx context.Context, p *model.NewsPost) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO news_posts (site_id, author, title, body, time_created)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, p.SiteID, p.Author, p.Title, p.Body, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating news post: %w", mapErr(err))
	}
	return nil
}

func (q *queries) ListNewsPosts(ctx context.Context, siteID int64, since time.Time, limit int) ([]model.NewsPost, error) {
	sql := `
		SELECT id, site_id, author, title, body, time_created FROM news_posts
		WHERE site_id = $1 AND time_created >= $2
		ORDER BY time_created DESC, id DESC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := q.db.Query(ctx, sql, siteID, since)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	defer rows.Close()

	var out []model.NewsPost
	for rows.Next() {
		var p model.NewsPost
		if err := rows.Scan(&p.ID, &p.SiteID, &p.Author, &p.Title, &p.Body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning news post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Content.

func (q *queries) GetContent(ctx context.Context, siteID int64, name string) (*model.Content, error) {
	var c model.Content
	err := q.db.QueryRow(ctx, `
		SELECT id, site_id, name, title, body, time_updated FROM contents
		WHERE site_id = $1 AND name = $2`, siteID, name).
		Scan(&c.ID, &c.SiteID, &c.Name, &c.Title, &c.Body, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (q *queries) SaveContent(ctx context.Context, c *model.Content) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO contents (site_id, name, title, body, time_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (site_id, name) DO UPDATE
			SET title = EXCLUDED.title, body = EXCLUDED.body, time_updated = EXCLUDED.time_updated
		RETURNING id`, c.SiteID, c.Name, c.Title, c.Body, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("saving content %q: %w", c.Name, mapErr(err))
	}
	return nil
}
