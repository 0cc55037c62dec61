package database

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimmo/server/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "estimmo.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleLead() *models.Lead {
	estimate := 152000.0
	return &models.Lead{
		Name:              "Marie Dupont",
		Email:             "marie@example.com",
		Phone:             "0601020304",
		Address:           "10 Rue de la République 13001 Marseille",
		PropertyType:      "Appartement",
		Project:           "Vendre",
		Condition:         "Neuf ou rénové",
		Surface:           48,
		Estimate:          &estimate,
		AskingPrice:       160000,
		CallbackRequested: true,
	}
}

func TestAppendLead_RoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	lead := sampleLead()
	require.NoError(t, db.AppendLead(lead))
	assert.NotZero(t, lead.ID)

	leads, err := db.GetLeads(models.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)

	got := leads[0]
	assert.Equal(t, lead.Name, got.Name)
	assert.Equal(t, lead.Email, got.Email)
	assert.Equal(t, lead.Phone, got.Phone)
	assert.Equal(t, lead.Address, got.Address)
	assert.Equal(t, lead.PropertyType, got.PropertyType)
	assert.Equal(t, lead.Project, got.Project)
	assert.Equal(t, lead.Condition, got.Condition)
	assert.Equal(t, lead.Surface, got.Surface)
	require.NotNil(t, got.Estimate)
	assert.Equal(t, *lead.Estimate, *got.Estimate)
	assert.Equal(t, lead.AskingPrice, got.AskingPrice)
	assert.True(t, got.CallbackRequested)
	assert.WithinDuration(t, time.Now().UTC(), got.CreatedAt, time.Minute)
}

func TestAppendLead_NullEstimate(t *testing.T) {
	db := newTestDatabase(t)

	lead := sampleLead()
	lead.Estimate = nil
	require.NoError(t, db.AppendLead(lead))

	leads, err := db.GetLeads(models.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Nil(t, leads[0].Estimate)
}

func TestGetLeads_Filters(t *testing.T) {
	db := newTestDatabase(t)

	first := sampleLead()
	require.NoError(t, db.AppendLead(first))

	second := sampleLead()
	second.Name = "Paul Martin"
	second.Project = "Louer"
	second.CallbackRequested = false
	require.NoError(t, db.AppendLead(second))

	byProject, err := db.GetLeads(models.LeadFilter{Project: "Louer"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, "Paul Martin", byProject[0].Name)

	byCallback, err := db.GetLeads(models.LeadFilter{CallbackOnly: true})
	require.NoError(t, err)
	require.Len(t, byCallback, 1)
	assert.Equal(t, "Marie Dupont", byCallback[0].Name)
}

func TestDeleteLeadByPosition(t *testing.T) {
	db := newTestDatabase(t)

	for _, name := range []string{"A", "B", "C"} {
		lead := sampleLead()
		lead.Name = name
		require.NoError(t, db.AppendLead(lead))
	}

	require.NoError(t, db.DeleteLeadByPosition(2))

	leads, err := db.GetLeads(models.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "A", leads[0].Name)
	assert.Equal(t, "C", leads[1].Name)

	// Out-of-range positions are rejected
	assert.Error(t, db.DeleteLeadByPosition(0))
	assert.Error(t, db.DeleteLeadByPosition(3))
}

func TestResetLeads(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.AppendLead(sampleLead()))
	require.NoError(t, db.AppendLead(sampleLead()))
	require.NoError(t, db.ResetLeads())

	count, err := db.CountLeads()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDatabase(t)
	// Running migrations again must be a no-op
	require.NoError(t, db.RunMigrations())
	require.NoError(t, db.AppendLead(sampleLead()))
}

func TestRunMigrations_BackfillsAdditiveColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimmo.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Old-shape table from before callback_requested existed
	_, err = db.db.Exec(`
		CREATE TABLE leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			email TEXT,
			phone TEXT,
			address TEXT,
			property_type TEXT,
			project TEXT,
			condition TEXT,
			surface REAL,
			estimate REAL,
			asking_price REAL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	require.NoError(t, err)
	_, err = db.db.Exec(`
		INSERT INTO leads (name, email, surface) VALUES ('Ancien Lead', 'old@example.com', 30)
	`)
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations())

	leads, err := db.GetLeads(models.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Ancien Lead", leads[0].Name)
	assert.False(t, leads[0].CallbackRequested)
}

func TestExportLeadsCSV(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.AppendLead(sampleLead()))

	var buf bytes.Buffer
	require.NoError(t, db.ExportLeadsCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Nom")
	assert.Contains(t, lines[1], "Marie Dupont")
	assert.Contains(t, lines[1], "152000")
}
