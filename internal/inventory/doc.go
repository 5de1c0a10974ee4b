// Package inventory holds the household data the alert engine reads:
// stock items, household members and groups, rationing scenarios and the
// user's notification settings.
//
// JSON field names follow the backup file format (camelCase), so the same
// types serve persisted state, import payloads and exports.
package inventory
