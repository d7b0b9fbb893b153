// Package rest emulates a PostgREST-compatible backend entirely in memory, so
// client code written against the PostgREST wire protocol can be exercised in
// tests without a network or database.
//
// Tables live in an in-memory store keyed by schema.table; rows are appended
// by POST requests (or seeded directly through Server.Store) and served back
// through the usual endpoints:
//
//	/rest/v1/<table>          CRUD on a table
//	/rest/v1/rpc/<function>   registered remote procedures
//	/functions/v1/<name>      registered edge functions
//
// Query parameters follow the PostgREST conventions:
//
//	Parameter              | Description
//	-----------------------|------------------------------------------------
//	?select=col1,col2      | Project specific columns; rel(col) for embeds
//	?order=col.desc        | Order results (supports nullsfirst/nullslast)
//	?limit=10&offset=5     | Pagination (Range header also honored)
//	?col=eq.val            | Filter by column (eq, neq, gt, gte, lt, lte,
//	                       | like, ilike, is, in, cs, cd, ov, fts, match)
//	?col=not.eq.val        | Negated filter
//	?or=(a.eq.x,b.lt.y)    | Disjunction, nestable with and(...)
//	?rel.col=eq.val        | Filter embedded relation data
//	?rel.order=col.desc    | Order/paginate embedded relation data
//
// Headers:
//
//	Header                                   | Description
//	-----------------------------------------|--------------------------------
//	Accept-Profile / Content-Profile         | Select schema (default public)
//	Prefer: resolution=merge-duplicates      | POST performs an upsert
//	Prefer: count=exact|planned              | Content-Range with total count
//	Prefer: return=minimal|representation    | Mutation response body control
//	Accept: application/vnd.pgrst.object+json| Single-object response shape
//
// Embedded relation data ("referenced tables") is supplied pre-denormalized
// inside parent rows; relation-scoped filters null out a failing to-one
// object and narrow a to-many sequence, leaving the parent row intact.
//
// The server implements http.Handler, so the usual setup is
// httptest.NewServer(rest.NewServer()) and pointing the client under test at
// its URL. Custom behavior is added by registering RPC and edge-function
// handlers, which receive the live store, and by an error-injection hook that
// aborts operations before any mutation.
package rest
