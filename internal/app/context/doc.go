// Package context scopes work to a single API request.
//
// Reads are memoized so that every view computed for one request sees the
// same task snapshot:
//
//	ctx = context.Scoped(ctx)
//	tasks, err := context.Memo(ctx, "tasks", repo.List)
//
// Writes that touch several tasks are staged and committed as a unit. When
// an action fails, the actions already executed are rolled back in reverse
// order:
//
//	rc := context.New()
//	rc.AddAction(&context.FuncAction{Name: "complete t-1", Do: ..., Undo: ...})
//	rc.AddAction(&context.FuncAction{Name: "complete t-2", Do: ..., Undo: ...})
//	err := rc.Commit(ctx)
//
// Bulk status changes, project renames and dependent-unlinking deletes use
// this so a failure part way through leaves every task as it was.
package context
