// Package core provides the business logic for bulk price imports.
//
// The package holds all domain logic independent of any transport. The web
// handlers and the CLI both drive it through [Service]; tests drive the
// pieces directly.
//
// # Pipeline
//
// An import pulls rows from a [BunchSource] one bunch at a time:
//
//   - [RowValidator] checks sku, price and, for scoped imports, store_id.
//     Problems are reported to an [ErrorAggregator] as [ValidationFailure]s.
//   - The aggregator applies a [TerminationPolicy]. Once it latches, every
//     remaining row is recorded as skipped instead of validated.
//   - Valid rows are grouped by sku in an [EntityGroup].
//   - An [EntityWriter] saves each group. [RepositoryWriter] looks the
//     product up with [Repository.GetBySKU] and updates its price with a
//     store-scoped [Repository.UpdateAttributes].
//
// [BatchImporter] wires these together and returns a [Summary] with the
// created and updated counts, failures and skipped rows.
//
// # Behaviors
//
// [BehaviorAppend] and [BehaviorReplace] run the same write path.
// [BehaviorDelete] is accepted and does nothing.
//
// # Concurrency
//
// [Service] bounds parallel runs with an [ImportLimiter]. Asynchronous runs
// started with [Service.StartImport] are tracked by id until their retention
// expires and can be cancelled with [Service.CancelImport].
//
// # Errors
//
// Errors are wrapped with fmt.Errorf and %w. [MapError] turns them into a
// [UserMessage] with a stable code for API responses and reports.
package core
