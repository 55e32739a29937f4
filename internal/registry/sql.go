package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"strings"

	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/starlane/infrastructure/cache"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/access"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/status"
)

// recordCacheTTL bounds how stale a cached Record lookup may be; short
// enough that a Set/Delete racing a reader settles within one poll cycle.
const recordCacheTTL = 2 * time.Second

// SQLRegistry is the postgres-backed RegistryApi implementation, the
// interchangeable counterpart to MemRegistry. Its context-keyed transaction
// pattern follows pkg/storage/postgres's BaseStore, but queries are issued
// directly with sqlx rather than through BaseStore's generic helpers, since
// the registry schema is not a single-entity CRUD table. Record lookups (the
// Executor's hottest path: every create/select/read resolves through it)
// are cached with a short TTL and invalidated on every mutation of the
// looked-up point.
type SQLRegistry struct {
	db          *sqlx.DB
	recordCache *cache.TTLCache
}

// NewSQLRegistry wraps an already-migrated *sql.DB as a RegistryApi.
func NewSQLRegistry(db *sql.DB) *SQLRegistry {
	return &SQLRegistry{db: sqlx.NewDb(db, "postgres"), recordCache: cache.NewTTLCache(recordCacheTTL)}
}

func phaseString(p status.Phase) string  { return p.String() }
func actionString(a status.Action) string { return a.String() }

var phaseFromString = map[string]status.Phase{
	"Unknown": status.PhaseUnknown, "None": status.PhaseNone,
	"Downloaded": status.PhaseDownloaded, "Installed": status.PhaseInstalled,
	"Initialize": status.PhaseInitialize, "Started": status.PhaseStarted,
	"Ready": status.PhaseReady,
}

var actionFromString = map[string]status.Action{
	"Unknown": status.ActionUnknown, "None": status.ActionNone,
	"Probing": status.ActionProbing, "Pending": status.ActionPending,
	"Initializing": status.ActionInitializing, "Done": status.ActionDone,
}

func parseStatus(phase, action string) status.Status {
	return status.Status{Phase: phaseFromString[phase], Action: actionFromString[action]}
}

// particleRow mirrors the particles table from
// internal/platform/migrations/0001_particles.sql.
type particleRow struct {
	Address      string         `db:"address"`
	Parent       sql.NullString `db:"parent"`
	Kind         string         `db:"kind"`
	SubVariant   sql.NullString `db:"sub_variant"`
	SubNested    sql.NullString `db:"sub_nested"`
	Specific     sql.NullString `db:"specific"`
	StatusPhase  string         `db:"status_phase"`
	StatusAction string         `db:"status_action"`
	Owner        sql.NullString `db:"owner"`
	Star         sql.NullString `db:"star"`
	Host         sql.NullString `db:"host"`
}

func (r particleRow) toStub() (particle.Stub, error) {
	p, err := point.New(r.Address)
	if err != nil {
		return particle.Stub{}, fmt.Errorf("parsing stored address %q: %w", r.Address, err)
	}
	k := kind.Kind{Base: kind.Base(r.Kind)}
	if r.SubVariant.Valid {
		k.Sub = kind.Sub{Variant: r.SubVariant.String, Nested: r.SubNested.String}
	}
	if r.Specific.Valid {
		k.Specific = parseSpecific(r.Specific.String)
	}
	return particle.Stub{
		Point:  p,
		Kind:   k,
		Status: parseStatus(r.StatusPhase, r.StatusAction),
	}, nil
}

// parseSpecific reverses kind.Specific.String()'s "vendor:product:variant:version" format.
func parseSpecific(raw string) kind.Specific {
	parts := strings.SplitN(raw, ":", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return kind.Specific{Vendor: parts[0], Product: parts[1], Variant: parts[2], Version: parts[3]}
}

func (r particleRow) toDetails(props particle.Properties) (particle.Details, error) {
	stub, err := r.toStub()
	if err != nil {
		return particle.Details{}, err
	}
	d := particle.Details{Stub: stub, Properties: props}
	if r.Star.Valid {
		star, err := point.New(r.Star.String)
		if err == nil {
			d.Location.Star = &star
		}
	}
	if r.Host.Valid {
		host, err := point.New(r.Host.String)
		if err == nil {
			d.Location.Host = &host
		}
	}
	return d, nil
}

func (s *SQLRegistry) Register(ctx context.Context, r particle.Registration) error {
	key := r.Point.String()

	if parent, ok := r.Point.Parent(); ok && !parent.IsRoot() {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM particles WHERE address=$1)`, parent.String()); err != nil {
			return fmt.Errorf("checking parent existence: %w", err)
		}
		if !exists {
			return slerrors.Spatial("parent point does not exist").WithDetails("parent", parent.String())
		}
	}

	var existing bool
	if err := s.db.GetContext(ctx, &existing, `SELECT EXISTS(SELECT 1 FROM particles WHERE address=$1)`, key); err != nil {
		return fmt.Errorf("checking address existence: %w", err)
	}
	if existing && r.Strategy != particle.StrategyEnsure {
		return slerrors.Dupe(key)
	}

	var parentAddr sql.NullString
	if parent, ok := r.Point.Parent(); ok {
		parentAddr = sql.NullString{String: parent.String(), Valid: true}
	}
	var subVariant, subNested sql.NullString
	if !r.Kind.Sub.IsZero() {
		subVariant = sql.NullString{String: r.Kind.Sub.Variant, Valid: true}
		subNested = sql.NullString{String: r.Kind.Sub.Nested, Valid: r.Kind.Sub.Nested != ""}
	}
	var specific sql.NullString
	if !r.Kind.Specific.IsZero() {
		specific = sql.NullString{String: r.Kind.Specific.String(), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO particles (address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (address) DO UPDATE SET
			kind=EXCLUDED.kind, sub_variant=EXCLUDED.sub_variant, sub_nested=EXCLUDED.sub_nested,
			specific=EXCLUDED.specific, status_phase=EXCLUDED.status_phase, status_action=EXCLUDED.status_action,
			updated_at=now()
	`, key, parentAddr, string(r.Kind.Base), subVariant, subNested, specific,
		phaseString(r.Status.Phase), actionString(r.Status.Action), r.Owner.String())
	if err != nil {
		return fmt.Errorf("insert particle: %w", err)
	}

	for k, v := range r.Properties {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO properties (point, key, value, locked) VALUES ($1,$2,$3,$4)
			ON CONFLICT (point, key) DO UPDATE SET value=EXCLUDED.value, locked=EXCLUDED.locked
		`, key, k, v.Value, v.Locked); err != nil {
			return fmt.Errorf("insert property %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.recordCache.Delete(ctx, key)
	return nil
}

func (s *SQLRegistry) AssignStar(ctx context.Context, p, star point.Point) error {
	return s.assignLocation(ctx, p, "star", star.String())
}

func (s *SQLRegistry) AssignHost(ctx context.Context, p, host point.Point) error {
	return s.assignLocation(ctx, p, "host", host.String())
}

func (s *SQLRegistry) assignLocation(ctx context.Context, p point.Point, column, value string) error {
	query := fmt.Sprintf(`UPDATE particles SET %s=$1, updated_at=now() WHERE address=$2`, column)
	res, err := s.db.ExecContext(ctx, query, value, p.String())
	if err != nil {
		return fmt.Errorf("assign %s: %w", column, err)
	}
	if err := requireRowsAffected(res, p.String()); err != nil {
		return err
	}
	s.recordCache.Delete(ctx, p.String())
	return nil
}

func requireRowsAffected(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return slerrors.NotFound(key)
	}
	return nil
}

func (s *SQLRegistry) SetStatus(ctx context.Context, p point.Point, st particle.Stub) error {
	res, err := s.db.ExecContext(ctx, `UPDATE particles SET status_phase=$1, status_action=$2, updated_at=now() WHERE address=$3`,
		phaseString(st.Status.Phase), actionString(st.Status.Action), p.String())
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if err := requireRowsAffected(res, p.String()); err != nil {
		return err
	}
	s.recordCache.Delete(ctx, p.String())
	return nil
}

func (s *SQLRegistry) SetProperties(ctx context.Context, sp SetProperties) error {
	key := sp.Point.String()

	var row particleRow
	if err := s.db.GetContext(ctx, &row, `SELECT address, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address=$1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slerrors.NotFound(key)
		}
		return fmt.Errorf("loading particle for property merge: %w", err)
	}

	current, err := s.getPropertiesLocked(ctx, key)
	if err != nil {
		return err
	}

	pc := particle.PropertiesConfig{} // the SQL backend holds no per-kind PropertiesConfig, so only Merge's own checks apply
	merged, err := particle.Merge(current, sp.Mods, pc)
	if err != nil {
		return slerrors.Spatial(err.Error())
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set-properties tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE point=$1`, key); err != nil {
		return fmt.Errorf("clearing properties: %w", err)
	}
	for k, v := range merged {
		if _, err := tx.ExecContext(ctx, `INSERT INTO properties (point, key, value, locked) VALUES ($1,$2,$3,$4)`, key, k, v.Value, v.Locked); err != nil {
			return fmt.Errorf("inserting property %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.recordCache.Delete(ctx, key)
	return nil
}

func (s *SQLRegistry) getPropertiesLocked(ctx context.Context, key string) (particle.Properties, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT key, value, locked FROM properties WHERE point=$1`, key)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer rows.Close()

	out := make(particle.Properties)
	for rows.Next() {
		var k, v string
		var locked bool
		if err := rows.Scan(&k, &v, &locked); err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		out[k] = particle.Property{Value: v, Locked: locked}
	}
	return out, rows.Err()
}

func (s *SQLRegistry) GetProperties(ctx context.Context, p point.Point) (particle.Properties, error) {
	key := p.String()
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM particles WHERE address=$1)`, key); err != nil {
		return nil, fmt.Errorf("checking particle existence: %w", err)
	}
	if !exists {
		return nil, slerrors.NotFound(key)
	}
	return s.getPropertiesLocked(ctx, key)
}

func (s *SQLRegistry) Record(ctx context.Context, p point.Point) (particle.Details, error) {
	key := p.String()
	if cached, ok := s.recordCache.Get(ctx, key); ok {
		return cached.(particle.Details), nil
	}

	var row particleRow
	if err := s.db.GetContext(ctx, &row, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address=$1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return particle.Details{}, slerrors.NotFound(key)
		}
		return particle.Details{}, fmt.Errorf("loading particle: %w", err)
	}
	props, err := s.getPropertiesLocked(ctx, key)
	if err != nil {
		return particle.Details{}, err
	}
	details, err := row.toDetails(props)
	if err != nil {
		return particle.Details{}, err
	}
	s.recordCache.Set(ctx, key, details)
	return details, nil
}

func (s *SQLRegistry) Sequence(ctx context.Context, parent point.Point) (uint64, error) {
	key := parent.String()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sequence tx: %w", err)
	}
	defer tx.Rollback()

	var next uint64
	err = tx.GetContext(ctx, &next, `
		INSERT INTO sequences (parent, next) VALUES ($1, 1)
		ON CONFLICT (parent) DO UPDATE SET next = sequences.next + 1
		RETURNING next - 1
	`, key)
	if err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sequence tx: %w", err)
	}
	return next, nil
}

func (s *SQLRegistry) Query(ctx context.Context, q Query) ([]particle.Stub, error) {
	switch q.Kind {
	case QueryPointHierarchy:
		return s.ancestorChain(ctx, q.Point)
	default:
		return nil, slerrors.Spatial("unknown query kind")
	}
}

func (s *SQLRegistry) ancestorChain(ctx context.Context, p point.Point) ([]particle.Stub, error) {
	var chain []particle.Stub
	cur := p
	for {
		var row particleRow
		err := s.db.GetContext(ctx, &row, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address=$1`, cur.String())
		switch {
		case err == nil:
			stub, convErr := row.toStub()
			if convErr != nil {
				return nil, convErr
			}
			chain = append([]particle.Stub{stub}, chain...)
		case errors.Is(err, sql.ErrNoRows):
			// absent ancestor is skipped, matching MemRegistry.ancestorChain
		default:
			return nil, fmt.Errorf("loading ancestor %s: %w", cur.String(), err)
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return chain, nil
}

func (s *SQLRegistry) Select(ctx context.Context, sel Select) ([]particle.Stub, error) {
	rootKey := sel.Root.String()

	var rootRow particleRow
	rootErr := s.db.GetContext(ctx, &rootRow, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address=$1`, rootKey)
	var rootStub *particle.Stub
	if rootErr == nil {
		st, err := rootRow.toStub()
		if err != nil {
			return nil, err
		}
		rootStub = &st
	} else if !errors.Is(rootErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading select root: %w", rootErr)
	}

	if sel.Pattern == "" {
		if rootStub == nil {
			return nil, nil
		}
		return []particle.Stub{*rootStub}, nil
	}

	var rows []particleRow
	if sel.Root.IsRoot() {
		if err := s.db.SelectContext(ctx, &rows, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address <> $1`, rootKey); err != nil {
			return nil, fmt.Errorf("selecting descendants: %w", err)
		}
	} else {
		prefix := rootKey + ":"
		if err := s.db.SelectContext(ctx, &rows, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address LIKE $1`, prefix+"%"); err != nil {
			return nil, fmt.Errorf("selecting descendants: %w", err)
		}
	}

	out := make([]particle.Stub, 0, len(rows)+1)
	if rootStub != nil {
		out = append(out, *rootStub)
	}
	for _, row := range rows {
		st, err := row.toStub()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *SQLRegistry) Delete(ctx context.Context, d Delete) ([]particle.Details, error) {
	key := d.Point.String()

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM particles WHERE address=$1)`, key); err != nil {
		return nil, fmt.Errorf("checking delete target existence: %w", err)
	}
	if !exists {
		return nil, slerrors.NotFound(key)
	}

	var count int
	if !d.Point.IsRoot() {
		if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM particles WHERE address LIKE $1`, key+":%"); err != nil {
			return nil, fmt.Errorf("counting children: %w", err)
		}
	}
	if !d.Cascade && count > 0 {
		return nil, slerrors.Spatial("point has children; refusing non-cascading delete").WithDetails("point", key)
	}

	var rows []particleRow
	pattern := key
	if !d.Point.IsRoot() {
		pattern = key + ":%"
	} else {
		pattern = "%"
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT address, parent, kind, sub_variant, sub_nested, specific, status_phase, status_action, owner, star, host FROM particles WHERE address=$1 OR address LIKE $2`, key, pattern); err != nil {
		return nil, fmt.Errorf("loading delete set: %w", err)
	}

	removed := make([]particle.Details, 0, len(rows))
	for _, row := range rows {
		props, err := s.getPropertiesLocked(ctx, row.Address)
		if err != nil {
			return nil, err
		}
		details, err := row.toDetails(props)
		if err != nil {
			return nil, err
		}
		removed = append(removed, details)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE point=$1 OR point LIKE $2`, key, pattern); err != nil {
		return nil, fmt.Errorf("deleting properties: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM particles WHERE address=$1 OR address LIKE $2`, key, pattern); err != nil {
		return nil, fmt.Errorf("deleting particles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete tx: %w", err)
	}
	for _, details := range removed {
		s.recordCache.Delete(ctx, details.Stub.Point.String())
	}
	return removed, nil
}

func (s *SQLRegistry) Grant(ctx context.Context, g access.Grant) error {
	if g.ID == "" {
		return slerrors.Spatial("grant id cannot be empty")
	}
	accessBits := make([]string, 0, len(g.Access))
	for perm, ok := range g.Access {
		if ok {
			accessBits = append(accessBits, string(perm))
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grants (id, grant_to, grant_on, access) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET grant_to=EXCLUDED.grant_to, grant_on=EXCLUDED.grant_on, access=EXCLUDED.access
	`, g.ID, g.To.String(), g.On.String(), encodeAccessBits(accessBits))
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (s *SQLRegistry) Access(ctx context.Context, to, on point.Point) (access.AccessSet, error) {
	var ownerStr sql.NullString
	if err := s.db.GetContext(ctx, &ownerStr, `SELECT owner FROM particles WHERE address=$1`, on.String()); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading owner: %w", err)
	}
	var owner point.Point
	if ownerStr.Valid && ownerStr.String != "" {
		if p, err := point.New(ownerStr.String); err == nil {
			owner = p
		}
	}

	grants, err := s.loadAllGrants(ctx)
	if err != nil {
		return nil, err
	}
	return access.Decide(to, on, owner, grants), nil
}

func (s *SQLRegistry) Chown(ctx context.Context, p, newOwner point.Point) error {
	res, err := s.db.ExecContext(ctx, `UPDATE particles SET owner=$1, updated_at=now() WHERE address=$2`, newOwner.String(), p.String())
	if err != nil {
		return fmt.Errorf("chown: %w", err)
	}
	if err := requireRowsAffected(res, p.String()); err != nil {
		return err
	}
	s.recordCache.Delete(ctx, p.String())
	return nil
}

func (s *SQLRegistry) ListAccess(ctx context.Context, on point.Point) ([]access.Grant, error) {
	grants, err := s.loadAllGrants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]access.Grant, 0, len(grants))
	for _, g := range grants {
		if g.AppliesTo(on) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *SQLRegistry) RemoveAccess(ctx context.Context, grantID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE id=$1`, grantID)
	if err != nil {
		return fmt.Errorf("remove access: %w", err)
	}
	return requireRowsAffected(res, grantID)
}

type grantRow struct {
	ID       string `db:"id"`
	GrantTo  string `db:"grant_to"`
	GrantOn  string `db:"grant_on"`
	Access   string `db:"access"`
}

func (s *SQLRegistry) loadAllGrants(ctx context.Context) ([]access.Grant, error) {
	var rows []grantRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, grant_to, grant_on, access FROM grants`); err != nil {
		return nil, fmt.Errorf("loading grants: %w", err)
	}
	out := make([]access.Grant, 0, len(rows))
	for _, r := range rows {
		to, err := point.New(r.GrantTo)
		if err != nil {
			continue
		}
		on, err := point.New(r.GrantOn)
		if err != nil {
			continue
		}
		out = append(out, access.Grant{
			ID:     r.ID,
			To:     to,
			On:     on,
			Access: decodeAccessBits(r.Access),
		})
	}
	return out, nil
}

func (s *SQLRegistry) Scorch(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scorch tx: %w", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"properties", "grants", "particles", "sequences"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("scorching %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.recordCache.InvalidateAll()
	return nil
}

// encodeAccessBits/decodeAccessBits serialize the set of held permissions as
// a comma-joined string; the grants table stores access as TEXT and the
// Permission values are already comma-safe identifiers.
func encodeAccessBits(bits []string) string {
	out := ""
	for i, b := range bits {
		if i > 0 {
			out += ","
		}
		out += b
	}
	return out
}

func decodeAccessBits(raw string) access.AccessSet {
	out := access.AccessSet{}
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out[access.Permission(raw[start:i])] = true
			}
			start = i + 1
		}
	}
	return out
}

var _ RegistryApi = (*SQLRegistry)(nil)
