// Package audit implements the durable audit log of registry operations.
//
// Entries are appended to a SQLite database that is separate from the
// registry document and indexed for compliance queries. The package covers
// four concerns:
//
//   - Logging: Engine.LogOperation sanitizes and appends one entry. It never
//     returns an error; failures are logged and counted so that a broken
//     audit sink cannot block a registry operation.
//   - Querying: Engine.QueryAuditLogs filters by date range, operation,
//     entity, performer, context, level and free text, with sort and paging.
//   - Statistics and reports: Engine.GetAuditStatistics aggregates
//     distributions and activity histograms; Engine.GenerateReport writes
//     JSON, CSV, HTML or Excel files.
//   - Retention: Engine.CleanupOldLogs and Engine.CleanupByRetention delete
//     rows past their level's retention window.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary.
package audit
