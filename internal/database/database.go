package database

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"estimmo/server/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// AppendLead persists a new lead. The store is append-only; rows are only
// removed through DeleteLeadByPosition or ResetLeads.
func (d *Database) AppendLead(lead *models.Lead) error {
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	result, err := d.db.Exec(`
		INSERT INTO leads (
			name, email, phone, address, property_type, project, condition,
			surface, estimate, asking_price, callback_requested, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Address,
		lead.PropertyType,
		lead.Project,
		lead.Condition,
		lead.Surface,
		lead.Estimate,
		lead.AskingPrice,
		lead.CallbackRequested,
		lead.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %v", err)
	}

	lead.ID, err = result.LastInsertId()
	return err
}

// GetLeads returns leads in insertion order, optionally filtered.
func (d *Database) GetLeads(filter models.LeadFilter) ([]models.Lead, error) {
	query := `
        SELECT
            id,
            COALESCE(name, '') as name,
            COALESCE(email, '') as email,
            COALESCE(phone, '') as phone,
            COALESCE(address, '') as address,
            COALESCE(property_type, '') as property_type,
            COALESCE(project, '') as project,
            COALESCE(condition, '') as condition,
            COALESCE(surface, 0) as surface,
            estimate,
            COALESCE(asking_price, 0) as asking_price,
            COALESCE(callback_requested, 0) as callback_requested,
            COALESCE(created_at, '') as created_at
        FROM leads
        WHERE (? = '' OR project = ?)
        AND (? = 0 OR callback_requested = 1)
    `
	var args []interface{}
	callbackOnly := 0
	if filter.CallbackOnly {
		callbackOnly = 1
	}
	args = append(args,
		filter.Project, filter.Project,
		callbackOnly,
	)

	if filter.StartDate != "" {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY id"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var lead models.Lead
		var estimate sql.NullFloat64
		var createdAt string

		err := rows.Scan(
			&lead.ID,
			&lead.Name,
			&lead.Email,
			&lead.Phone,
			&lead.Address,
			&lead.PropertyType,
			&lead.Project,
			&lead.Condition,
			&lead.Surface,
			&estimate,
			&lead.AskingPrice,
			&lead.CallbackRequested,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		if estimate.Valid {
			v := estimate.Float64
			lead.Estimate = &v
		}
		if createdAt != "" {
			if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
				lead.CreatedAt = t
			}
		}

		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// DeleteLeadByPosition removes the lead at a 1-based position in insertion
// order.
func (d *Database) DeleteLeadByPosition(position int) error {
	if position < 1 {
		return fmt.Errorf("position out of range: %d", position)
	}

	var id int64
	err := d.db.QueryRow(`
		SELECT id FROM leads ORDER BY id LIMIT 1 OFFSET ?
	`, position-1).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("position out of range: %d", position)
	}
	if err != nil {
		return err
	}

	_, err = d.db.Exec("DELETE FROM leads WHERE id = ?", id)
	return err
}

// ResetLeads deletes every lead.
func (d *Database) ResetLeads() error {
	_, err := d.db.Exec("DELETE FROM leads")
	return err
}

// CountLeads returns the number of stored leads.
func (d *Database) CountLeads() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM leads").Scan(&count)
	return count, err
}

// ExportLeadsCSV writes all leads as CSV, matching the admin download.
func (d *Database) ExportLeadsCSV(w io.Writer) error {
	leads, err := d.GetLeads(models.LeadFilter{})
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{
		"Nom", "Email", "Téléphone", "Adresse", "Type", "Projet", "État",
		"Surface", "Estimation (€)", "Prix souhaité (€)", "Rappel", "Date",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, lead := range leads {
		estimate := ""
		if lead.Estimate != nil {
			estimate = strconv.FormatFloat(*lead.Estimate, 'f', 0, 64)
		}
		callback := ""
		if lead.CallbackRequested {
			callback = "oui"
		}
		row := []string{
			lead.Name,
			lead.Email,
			lead.Phone,
			lead.Address,
			lead.PropertyType,
			lead.Project,
			lead.Condition,
			strconv.FormatFloat(lead.Surface, 'f', -1, 64),
			estimate,
			strconv.FormatFloat(lead.AskingPrice, 'f', 0, 64),
			callback,
			lead.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (d *Database) Close() error {
	return d.db.Close()
}
