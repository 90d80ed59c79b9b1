package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE plugins (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				type VARCHAR(20) NOT NULL CHECK (type IN ('builtin', 'external')),
				artifact_url TEXT NOT NULL DEFAULT '',
				default_install BOOLEAN NOT NULL DEFAULT false
			);

			CREATE TABLE datasources (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				plugin_id VARCHAR(255) NOT NULL,
				configuration JSONB NOT NULL DEFAULT '{}',
				is_valid BOOLEAN,
				invalids JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_datasources_organization_id ON datasources(organization_id);

			CREATE TABLE actions (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				page_id VARCHAR(255) NOT NULL DEFAULT '',
				configuration JSONB NOT NULL DEFAULT '{}',
				datasource_id VARCHAR(255) NOT NULL DEFAULT '',
				datasource JSONB,
				timeout_ms INTEGER,
				is_valid BOOLEAN NOT NULL DEFAULT false,
				invalids JSONB NOT NULL DEFAULT '[]',
				placeholder_keys JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_actions_page_id ON actions(page_id);
		`,
		2: `
			CREATE TABLE organization_plugins (
				organization_id VARCHAR(255) NOT NULL,
				plugin_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('NOT_INSTALLED', 'INSTALLING', 'INSTALLED', 'FAILED')),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (organization_id, plugin_id)
			);

			CREATE INDEX idx_organization_plugins_status ON organization_plugins(status);
		`,
		3: `CREATE INDEX idx_actions_datasource_id ON actions(datasource_id);`,
	}
}
