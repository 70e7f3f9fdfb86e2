package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(128) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_updated_at ON workflows(updated_at);
		`,
		2: `
			ALTER TABLE workflows
				ADD COLUMN success_rate DOUBLE PRECISION NOT NULL DEFAULT 100,
				ADD COLUMN estimated_gas TEXT NOT NULL DEFAULT '';

			CREATE INDEX idx_workflows_name ON workflows(name);
		`,
	}
}
