package gateway

type metadataSQL struct {
	tables      string
	constraints string
}

var metadataQueries = map[Dialect]metadataSQL{
	Postgres: {
		tables: `SELECT table_schema, table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name, ordinal_position`,
		constraints: `SELECT tc.constraint_name, tc.table_name, kcu.column_name,
       ccu.table_name AS referenced_table, ccu.column_name AS referenced_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'`,
	},
	MySQL: {
		tables: `SELECT table_schema AS table_schema, table_name AS table_name, column_name AS column_name,
       data_type AS data_type, is_nullable AS is_nullable
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`,
		constraints: `SELECT constraint_name AS constraint_name, table_name AS table_name, column_name AS column_name,
       referenced_table_name AS referenced_table, referenced_column_name AS referenced_column
FROM information_schema.key_column_usage
WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL`,
	},
	MSSQL: {
		tables: `SELECT table_schema AS table_schema, table_name AS table_name, column_name AS column_name,
       data_type AS data_type, is_nullable AS is_nullable
FROM information_schema.columns
ORDER BY table_schema, table_name, ordinal_position`,
		constraints: `SELECT rc.constraint_name AS constraint_name, fk.table_name AS table_name, fk.column_name AS column_name,
       pk.table_name AS referenced_table, pk.column_name AS referenced_column
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage fk ON fk.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage pk
  ON pk.constraint_name = rc.unique_constraint_name AND pk.ordinal_position = fk.ordinal_position`,
	},
}
