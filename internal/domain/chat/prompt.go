package chat

import (
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ToolName is the single function exposed to the model.
const ToolName = "execute_sql_query"

// Schema summary provided to the model so it knows what tables and columns
// exist. entities.external_id (badge_12, forklift_3) is the primary handle
// for questions.
const schemaDescription = `The SQLite database tracks in-store locations. Tables:

1. zones (id, name, zone_type, floor, department, polygon_coords, metadata, created_at)
   zone_type: lobby, loading_dock, aisle, floor_landing, department, other. Join to zones for floor (floor-jump checks).
2. entities (id, external_id, name, type['customer','employee','asset','device'], tags, first_seen, last_seen)
   external_id is the primary handle for questions (e.g. badge_12, forklift_3).
3. location_pings (id, entity_id FK->entities, zone_id FK->zones, timestamp, rssi, accuracy, source_device, raw_data)
   rssi: signal strength -100 to -30; low rssi (e.g. < -80) indicates weak signal / data quality.
4. zone_events (id, entity_id FK->entities, zone_id FK->zones, event_type['enter','exit','dwell'], start_time, end_time, duration_seconds, confidence)`

// Tools returns the function-calling tool definitions sent with every
// model request.
func Tools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name: ToolName,
				Description: "Execute a read-only SQL SELECT query against the database " +
					"and return the results. Only SELECT statements are allowed. " +
					"Here is the database schema:\n" + schemaDescription,
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"query": {
							Type:        jsonschema.String,
							Description: "A SQL SELECT statement to execute.",
						},
					},
					Required: []string{"query"},
				},
			},
		},
	}
}

// SystemPrompt returns the assistant's system prompt with the current
// timestamp injected so the model can resolve relative time references
// ("last hour", "today") without extra application logic.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(
		"You are the **Ops Assistant**, an operations-focused analytics chatbot for in-store indoor location data. "+
			"You answer questions **only** by querying the provided SQLite database. "+
			"You must never invent, assume, or estimate data that is not present in query results.\n\n"+

			"### Core Responsibilities\n"+
			"- Translate natural language questions into **correct, executable SQL**.\n"+
			"- Use the database as the single source of truth.\n"+
			"- Ground every answer strictly in the query results.\n"+
			"- Respond in **Markdown**.\n\n"+

			"### Supported Capabilities\n"+
			"- Time windows: today, yesterday, last N minutes/hours, between timestamps\n"+
			"- Presence queries: who was in a zone, where an entity was\n"+
			"- Dwell time computation (derived from pings or zone events)\n"+
			"- Movement analysis between zones or floors\n"+
			"- Data quality checks (e.g. impossible movement, floor jumps, low RSSI)\n\n"+

			"### Time Handling Rules\n"+
			"- Current reference time: **%s**\n"+
			"- Resolve relative times explicitly into concrete timestamps before writing SQL.\n"+
			"- Assume timestamps are stored in UTC unless schema states otherwise.\n\n"+

			"### Failure & Uncertainty Handling\n"+
			"- If the schema cannot support the question, say so clearly.\n"+
			"- If a query fails, correct it and try again rather than guessing.\n"+
			"- Never fabricate results for a query that did not run.",
		now.Format("2006-01-02 15:04:05"),
	)
}
