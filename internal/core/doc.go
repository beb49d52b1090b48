// Package core provides the business logic for the MINERD school import.
//
// This package holds all domain logic independent of any transport: the
// cobra commands and the admin HTTP server both drive the same [Service].
//
// # Pipeline
//
// One import run ([Service.RunImport]) works through a fixed sequence:
//
//  1. Snapshot existing schools (id, name, minerd_code); failure is fatal
//  2. Fetch the candidate batch from the [Source]
//  3. For each candidate, in order:
//     validate ([Validator]), check for fuzzy duplicates ([Detector]),
//     resolve the province, upsert keyed by minerd_code
//  4. Write one data_imports row and return the [RunSummary]
//
// A bad record never aborts the batch. It is counted as skipped, or as a
// duplicate when its name resembles an existing school, and itemised in the
// summary with a support code (see [MapError]).
//
// # Validation
//
// Records go through three layers: format, range/policy, and in-run
// consistency (a MINERD code may be imported once per run). Only a
// [Validator] can build a [ValidatedRecord].
//
// # Maintenance Jobs
//
//   - [Service.RecalculateRatings]: calls calculate_rating for each school
//   - [Service.UpdateTopPublic]: flags the best public schools per province
package core
