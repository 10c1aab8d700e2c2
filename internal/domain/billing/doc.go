// Package billing holds the receivables side of the property management
// core: tenant invoices with VAT-carrying cost-category lines, incoming
// payments, and the allocations that tie the two together.
//
// Key aggregates:
//   - Invoice: one tenant invoice per accounting period; PaidAmount and
//     Status are always recomputed from the allocation set, never
//     incremented in place.
//   - Payment: an incoming amount with its remaining unapplied portion.
//   - Allocation: the applied amount of one payment against one invoice,
//     split across cost categories.
//   - PeriodLock: a closed accounting period; bookings into it are refused.
//
// Allocation strategies (FIFO across invoices, waterfall across the cost
// categories of one invoice) live in allocation_strategy.go and are pure
// functions over invoices, so they stay trivially testable.
package billing
