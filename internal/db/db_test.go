package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerriAI/litellm-sub032/internal/model"
)

// versionCols are the columns returned by policy version queries.
var versionCols = []string{
	"policy_id", "policy_name", "version_number", "version_status",
	"parent_version_id", "is_latest", "inherit", "guardrails_add",
	"guardrails_remove", "condition", "pipeline", "description",
	"published_at", "production_at", "created_by", "updated_by",
	"created_at", "updated_at",
}

// attachmentCols are the columns returned by attachment queries.
var attachmentCols = []string{
	"id", "policy_name", "scope", "teams", "keys", "models", "tags",
	"created_by", "created_at", "updated_at",
}

func newTestQueries(t *testing.T) (*Queries, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return New(mock), mock
}

// versionRow builds a draft row with the common fields filled in.
func versionRow(id, name string, num int32, status string) []any {
	return []any{
		id, name, num, status,
		nil, true, nil, []string{"pii"},
		[]string{}, []byte(`null`), []byte(`null`), nil,
		nil, nil, nil, nil,
		nil, nil,
	}
}

// ---------- Policy versions ----------

func TestCreatePolicyVersion(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO "PolicyVersionTable"`).
		WithArgs("pv-1", "pii-baseline", int32(1), (*string)(nil), (*string)(nil),
			[]string{"pii"}, []string{}, []byte(`null`), []byte(`null`), (*string)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-1", "pii-baseline", 1, "draft")...))

	row, err := q.CreatePolicyVersion(context.Background(), CreatePolicyVersionParams{
		PolicyID:         "pv-1",
		PolicyName:       "pii-baseline",
		VersionNumber:    1,
		GuardrailsAdd:    []string{"pii"},
		GuardrailsRemove: []string{},
		Condition:        []byte(`null`),
		Pipeline:         []byte(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, "pv-1", row.PolicyID)
	assert.Equal(t, "draft", row.VersionStatus)
	assert.True(t, row.IsLatest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPolicyVersion_NotFound(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`(?s)FROM "PolicyVersionTable".+WHERE policy_id = \$1`).
		WithArgs("pv-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := q.GetPolicyVersion(context.Background(), "pv-missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPolicyVersions(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`(?s)FROM "PolicyVersionTable".+WHERE policy_name = \$1.+ORDER BY version_number DESC`).
		WithArgs("pii-baseline").
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-2", "pii-baseline", 2, "draft")...).
			AddRow(versionRow("pv-1", "pii-baseline", 1, "production")...))

	rows, err := q.ListPolicyVersions(context.Background(), "pii-baseline")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int32(2), rows[0].VersionNumber)
	assert.Equal(t, "production", rows[1].VersionStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPolicyVersionByNameStatus(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`(?s)WHERE policy_name = \$1 AND version_status = \$2`).
		WithArgs("pii-baseline", "production").
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-1", "pii-baseline", 1, "production")...))

	row, err := q.GetPolicyVersionByNameStatus(context.Background(), GetPolicyVersionByNameStatusParams{
		PolicyName:    "pii-baseline",
		VersionStatus: "production",
	})
	require.NoError(t, err)
	assert.Equal(t, "pv-1", row.PolicyID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestVersionNumber(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version_number\), 0\)::int`).
		WithArgs("pii-baseline").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int32(3)))

	n, err := q.LatestVersionNumber(context.Background(), "pii-baseline")
	require.NoError(t, err)
	assert.Equal(t, int32(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePolicyVersionContent(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	desc := "tightened"
	mock.ExpectQuery(`(?s)UPDATE "PolicyVersionTable".+SET inherit = \$2`).
		WithArgs("pv-2", (*string)(nil), []string{"pii", "jailbreak"}, []string{},
			[]byte(`null`), []byte(`null`), &desc, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-2", "pii-baseline", 2, "draft")...))

	row, err := q.UpdatePolicyVersionContent(context.Background(), UpdatePolicyVersionContentParams{
		PolicyID:         "pv-2",
		GuardrailsAdd:    []string{"pii", "jailbreak"},
		GuardrailsRemove: []string{},
		Condition:        []byte(`null`),
		Pipeline:         []byte(`null`),
		Description:      &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "pv-2", row.PolicyID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTransitions(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`SET version_status = 'published', published_at`).
		WithArgs("pv-1").
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-1", "pii-baseline", 1, "published")...))
	mock.ExpectQuery(`SET version_status = 'production', production_at`).
		WithArgs("pv-1").
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow(versionRow("pv-1", "pii-baseline", 1, "production")...))
	mock.ExpectExec(`SET version_status = 'published', updated_at`).
		WithArgs("pv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	published, err := q.PublishPolicyVersion(context.Background(), "pv-1")
	require.NoError(t, err)
	assert.Equal(t, "published", published.VersionStatus)

	promoted, err := q.PromotePolicyVersion(context.Background(), "pv-1")
	require.NoError(t, err)
	assert.Equal(t, "production", promoted.VersionStatus)

	require.NoError(t, q.DemotePolicyVersion(context.Background(), "pv-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearLatestFlagAndDelete(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectExec(`SET is_latest = FALSE`).
		WithArgs("pii-baseline").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`DELETE FROM "PolicyVersionTable"`).
		WithArgs("pv-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, q.ClearLatestFlag(context.Background(), "pii-baseline"))
	require.NoError(t, q.DeletePolicyVersion(context.Background(), "pv-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------- Attachments ----------

func TestCreatePolicyAttachment(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO "PolicyAttachmentTable"`).
		WithArgs("att-1", "pii-baseline", (*string)(nil), []string{"fraud-team"},
			[]string{}, []string{"gpt-4*"}, []string{}, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(attachmentCols).
			AddRow("att-1", "pii-baseline", nil, []string{"fraud-team"},
				[]string{}, []string{"gpt-4*"}, []string{}, nil, nil, nil))

	row, err := q.CreatePolicyAttachment(context.Background(), CreatePolicyAttachmentParams{
		ID:         "att-1",
		PolicyName: "pii-baseline",
		Teams:      []string{"fraud-team"},
		Keys:       []string{},
		Models:     []string{"gpt-4*"},
		Tags:       []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, "att-1", row.ID)
	assert.Equal(t, []string{"gpt-4*"}, row.Models)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPolicyAttachmentsByPolicy(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`(?s)FROM "PolicyAttachmentTable".+WHERE policy_name = \$1`).
		WithArgs("pii-baseline").
		WillReturnRows(pgxmock.NewRows(attachmentCols).
			AddRow("att-1", "pii-baseline", nil, []string{"fraud-team"},
				[]string{}, []string{}, []string{}, nil, nil, nil))

	rows, err := q.ListPolicyAttachmentsByPolicy(context.Background(), "pii-baseline")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"fraud-team"}, rows[0].Teams)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePolicyAttachment(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM "PolicyAttachmentTable"`).
		WithArgs("att-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, q.DeletePolicyAttachment(context.Background(), "att-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------- Aliases ----------

func TestAliasLookups(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM "TeamTable"`).
		WithArgs("fraud-team").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM "VerificationToken"`).
		WithArgs("stale-key").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT key_alias FROM "VerificationToken"`).
		WillReturnRows(pgxmock.NewRows([]string{"key_alias"}).
			AddRow("prod-key").AddRow("staging-key"))

	exists, err := q.TeamAliasExists(context.Background(), "fraud-team")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = q.KeyAliasExists(context.Background(), "stale-key")
	require.NoError(t, err)
	assert.False(t, exists)

	keys, err := q.ListKeyAliases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-key", "staging-key"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------- Store source ----------

func TestProductionPolicies(t *testing.T) {
	q, mock := newTestQueries(t)
	defer mock.Close()

	parent := "base"
	mock.ExpectQuery(`(?s)FROM "PolicyVersionTable".+WHERE version_status = 'production'`).
		WillReturnRows(pgxmock.NewRows(versionCols).
			AddRow("pv-1", "base", int32(1), "production",
				nil, false, nil, []string{"pii"},
				[]string{}, []byte(`null`), []byte(`null`), nil,
				nil, nil, nil, nil, nil, nil).
			AddRow("pv-7", "strict", int32(3), "production",
				nil, true, &parent, []string{"jailbreak"},
				[]string{}, []byte(`{"model":["gpt-4*"]}`), []byte(`null`), nil,
				nil, nil, nil, nil, nil, nil))

	policies, err := q.ProductionPolicies(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, []string{"pii"}, policies["base"].Guardrails.Add)
	require.NotNil(t, policies["strict"].Condition)
	assert.Equal(t, model.ConditionPatterns{"gpt-4*"}, policies["strict"].Condition.Model)
	assert.Equal(t, "base", *policies["strict"].Inherit)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------- Row conversions ----------

func TestPolicyVersionRowDecode(t *testing.T) {
	row := PolicyVersionTable{
		PolicyID:      "pv-1",
		PolicyName:    "strict",
		VersionNumber: 2,
		VersionStatus: "published",
		GuardrailsAdd: []string{"pii"},
		Condition:     []byte(`{"model":["gpt-4*"]}`),
		Pipeline:      []byte(`{"mode":"pre_call","steps":[{"guardrail":"pii"}]}`),
		PublishedAt:   pgtype.Timestamptz{Time: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	}

	v, err := row.Version()
	require.NoError(t, err)
	assert.Equal(t, "strict", v.Policy.Name)
	require.NotNil(t, v.Policy.Condition)
	assert.Equal(t, model.ConditionPatterns{"gpt-4*"}, v.Policy.Condition.Model)
	require.NotNil(t, v.Policy.Pipeline)
	assert.Equal(t, "pre_call", v.Policy.Pipeline.Mode)
	require.NotNil(t, v.PublishedAt)
	assert.Equal(t, 2026, v.PublishedAt.Year())
	assert.Nil(t, v.ProductionAt)
}

func TestPolicyVersionRowDecode_BadCondition(t *testing.T) {
	row := PolicyVersionTable{
		PolicyName: "broken",
		Condition:  []byte(`{not json`),
	}
	_, err := row.Policy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
