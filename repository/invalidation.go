package repository

import (
	"gitdock/internal/cache"
)

// Cache groups. Mutations invalidate whole groups or path-scoped keys
// within them; everything else keeps its identity.
const (
	GroupChangedFiles             cache.Group = "changed-files"
	GroupStagedChanges            cache.Group = "staged-changes"
	GroupStagedChangesSinceParent cache.Group = "staged-changes-since-parent"
	GroupPartiallyStaged          cache.Group = "is-partially-staged"
	GroupFilePatch                cache.Group = "file-patch"
	GroupIndex                    cache.Group = "index"
	GroupLastCommit               cache.Group = "last-commit"
	GroupRecentCommits            cache.Group = "recent-commits"
	GroupBranches                 cache.Group = "branches"
	GroupCurrentBranch            cache.Group = "current-branch"
	GroupRemotes                  cache.Group = "remotes"
	GroupAhead                    cache.Group = "ahead-count"
	GroupBehind                   cache.Group = "behind-count"
	GroupConfig                   cache.Group = "config"
)

// Mutation classes, keyed into the invalidation table.
const (
	opStage      = "stage"
	opCommit     = "commit"
	opMerge      = "merge"
	opAbortMerge = "abort-merge"
	opFetch      = "fetch"
	opPull       = "pull"
	opPush       = "push"
	opSetConfig  = "set-config"
	opDiscard    = "discard"
)

// effect describes what one mutation class drops from the cache.
// groups fall wholesale; perPath entries are scoped to each touched
// path, expanded through the listed scope prefixes ("" meaning the
// bare path); scopePrefix drops a group's keys by scope prefix alone.
type effect struct {
	groups      []cache.Group
	perPath     map[cache.Group][]string
	scopePrefix map[cache.Group]string
}

// invalidationTable is the single authority on cache invalidation: one
// row per mutation class, no invalidation decisions anywhere else.
var invalidationTable = map[string]effect{
	// Index mutations: staging, unstaging, index patches, and staging
	// from the parent commit all reshape the same three listings plus
	// the touched paths' per-file entries. Branch, remote, commit, and
	// config entries survive untouched.
	opStage: {
		groups: []cache.Group{GroupChangedFiles, GroupStagedChanges, GroupStagedChangesSinceParent},
		perPath: map[cache.Group][]string{
			GroupPartiallyStaged: {""},
			GroupIndex:           {""},
			GroupFilePatch:       {"u:", "s:", "s:amending:"},
		},
	},
	// Commit folds the index into a new HEAD: listings empty out,
	// every staged-side patch is relative to a new base, and every
	// ahead count grew. Unstaged patches compare the working tree to
	// the unchanged index, so they and the per-path index entries
	// survive, as do branches, remotes, behind counts, and config.
	opCommit: {
		groups: []cache.Group{
			GroupLastCommit, GroupRecentCommits,
			GroupChangedFiles, GroupStagedChanges, GroupStagedChangesSinceParent,
			GroupPartiallyStaged, GroupAhead,
		},
		scopePrefix: map[cache.Group]string{GroupFilePatch: "s:"},
	},
	// Merge moves HEAD, the index, and the working tree at once.
	opMerge: {
		groups: []cache.Group{
			GroupLastCommit, GroupRecentCommits,
			GroupChangedFiles, GroupStagedChanges, GroupStagedChangesSinceParent,
			GroupPartiallyStaged, GroupFilePatch, GroupIndex,
			GroupAhead, GroupBehind,
		},
	},
	// Aborting a merge restores the pre-merge index and working tree;
	// HEAD never moved, so commit-derived entries survive.
	opAbortMerge: {
		groups: []cache.Group{
			GroupChangedFiles, GroupStagedChanges, GroupStagedChangesSinceParent,
			GroupPartiallyStaged, GroupFilePatch, GroupIndex,
		},
	},
	// Fetch only updates remote tracking refs.
	opFetch: {
		groups: []cache.Group{GroupBranches, GroupAhead, GroupBehind},
	},
	// Pull is a fetch plus a merge into the current branch.
	opPull: {
		groups: []cache.Group{
			GroupBranches, GroupCurrentBranch, GroupAhead, GroupBehind,
			GroupLastCommit, GroupRecentCommits,
			GroupChangedFiles, GroupStagedChanges, GroupStagedChangesSinceParent,
			GroupPartiallyStaged, GroupFilePatch, GroupIndex,
		},
	},
	// Push refreshes remote state and tracking refs.
	opPush: {
		groups: []cache.Group{GroupBranches, GroupAhead, GroupBehind, GroupRemotes},
	},
	// Writing one config key drops exactly that key's two scope
	// variants; the "paths" fed through perPath are config keys.
	opSetConfig: {
		perPath: map[cache.Group][]string{
			GroupConfig: {"", "local:"},
		},
	},
	// Discards touch only the working tree: the staged listings and
	// staged patches still describe the same index.
	opDiscard: {
		groups: []cache.Group{GroupChangedFiles},
		perPath: map[cache.Group][]string{
			GroupPartiallyStaged: {""},
			GroupFilePatch:       {"u:"},
		},
	},
}

// invalidateFor applies the table row for op, scoping per-path groups
// to the touched paths. It runs inside the mutation's queue task, so
// the caches are consistent before the task's caller observes the
// result.
func (r *Repository) invalidateFor(op string, paths ...string) {
	eff, ok := invalidationTable[op]
	if !ok {
		// Unknown mutation classes fall back to a full clear rather
		// than serving stale reads.
		r.cache.Clear()
		return
	}
	if len(eff.groups) > 0 {
		r.cache.InvalidateGroups(eff.groups...)
	}
	for g, prefix := range eff.scopePrefix {
		r.cache.InvalidateScopePrefix(g, prefix)
	}
	if len(eff.perPath) == 0 || len(paths) == 0 {
		return
	}
	var keys []cache.Key
	for _, p := range paths {
		for g, prefixes := range eff.perPath {
			for _, prefix := range prefixes {
				keys = append(keys, cache.Key{Group: g, Scope: prefix + p})
			}
		}
	}
	r.cache.Invalidate(keys...)
}

func filePatchKey(path string, opts PatchOptions) cache.Key {
	scope := "u:" + path
	if opts.Staged {
		if opts.Amending {
			scope = "s:amending:" + path
		} else {
			scope = "s:" + path
		}
	}
	return cache.Key{Group: GroupFilePatch, Scope: scope}
}

func configKey(key string, opts ConfigOptions) cache.Key {
	scope := key
	if opts.Local {
		scope = "local:" + key
	}
	return cache.Key{Group: GroupConfig, Scope: scope}
}
