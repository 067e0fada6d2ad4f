package sink

import "fmt"

// factTableDDL returns the CREATE TABLE statements for every fact table in
// the analytics database, in creation order. All statements are
// IF NOT EXISTS so bootstrap is safe to run on every startup.
//
// Tables are MergeTree, partitioned by month and ordered by
// (timestamp, primary subject id). event_date is materialized from the event
// timestamp so windowed queries prune partitions by date.
func factTableDDL(database string) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.api_requests_log (
				event_id         String,
				timestamp        DateTime,
				method           LowCardinality(String),
				path             String,
				status_code      UInt16,
				response_time_ms UInt32,
				user_id          UInt32,
				request_size     UInt64,
				response_size    UInt64,
				ip_address       String,
				user_agent       String,
				platform         LowCardinality(String),
				error_message    String,
				event_date       Date MATERIALIZED toDate(timestamp)
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (timestamp, user_id)`, database),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.track_analytics (
				event_id    String,
				timestamp   DateTime,
				track_id    UInt32,
				artist_id   UInt32,
				album_id    UInt32,
				genre_id    UInt32,
				user_id     Nullable(UInt32),
				action      LowCardinality(String),
				duration_ms Int64,
				completion  Float32,
				platform    LowCardinality(String),
				device_type LowCardinality(String),
				session_id  String,
				event_date  Date MATERIALIZED toDate(timestamp)
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (timestamp, track_id)`, database),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.search_analytics (
				event_id         String,
				timestamp        DateTime,
				user_id          UInt32,
				query            String,
				results_count    UInt32,
				search_type      LowCardinality(String),
				clicked_track_id UInt32,
				session_id       String,
				event_date       Date MATERIALIZED toDate(timestamp)
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (timestamp, user_id)`, database),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.user_analytics (
				event_id   String,
				timestamp  DateTime,
				user_id    UInt32,
				action     LowCardinality(String),
				platform   LowCardinality(String),
				metadata   String,
				event_date Date MATERIALIZED toDate(timestamp)
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (timestamp, user_id)`, database),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.artist_analytics (
				event_id   String,
				timestamp  DateTime,
				artist_id  UInt32,
				action     LowCardinality(String),
				user_id    UInt32,
				event_date Date MATERIALIZED toDate(timestamp)
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (timestamp, artist_id)`, database),
	}
}
