// Package rbac provides role membership for the Helmsman automation platform.
//
// # Overview
//
// Every managed object (organization, project, inventory, credential,
// job template) owns a small set of named roles. A role is a grant of
// a capability scoped to that one object:
//
//	admin_role    - manage the object, including deletion
//	use_role      - reference the object from other objects
//	read_role     - view the object
//	member_role   - organization membership
//	execute_role  - launch jobs against the object
//
// Roles form a directed graph: a parent role implies membership in its
// children. An organization's admin_role is typically a parent of the
// admin_role of every object in that organization, so organization
// admins hold every object-level role transitively.
//
// # Membership
//
// Consumers ask one question: does user U hold role R on object O,
// directly or through an ancestor role. That question is the Role
// interface's single method, ContainsUser, and the Membership
// interface's HasRole. The access-decision layer in pkg/access is
// built entirely on this predicate; it never walks the graph itself.
//
// # Implementations
//
// Graph is an in-memory implementation used for tests and
// authorization dry-runs over transient objects. Store is backed by
// database/sql (Postgres in production, sqlite3 in tests) and walks
// parent edges at query time. CachedMembership layers an in-process
// LRU and an optional shared Redis cache over any Membership; cached
// reads may be momentarily stale, which callers tolerate.
package rbac
