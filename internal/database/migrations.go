package database

// RunMigrations creates the leads table and applies the additive column
// migrations. Columns added in later versions are guarded by the duplicate
// column error so older databases upgrade in place; reads backfill missing
// values as empty.
func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
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
	if err != nil {
		return err
	}

	// callback_requested was added after the first release
	_, err = d.db.Exec(`
		ALTER TABLE leads
		ADD COLUMN callback_requested BOOLEAN DEFAULT 0;
	`)
	if err != nil && err.Error() != "duplicate column name: callback_requested" {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_leads_created_at
		ON leads(created_at);
	`)
	if err != nil {
		return err
	}

	return nil
}
