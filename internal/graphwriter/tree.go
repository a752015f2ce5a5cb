// Package graphwriter maintains the knowledge graph: entity and
// relationship upserts, and the project → directory → file containment tree
// that makes every stored file reachable from its project root.
package graphwriter

import (
	"context"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/graphstore"
)

// Node labels and containment edge kind.
const (
	LabelProject   = "Project"
	LabelDirectory = "Directory"
	LabelFile      = "File"
	LabelEntity    = "Entity"

	EdgeContains       = "contains"
	EdgeContainsEntity = "contains_entity"
)

// ProjectRef addresses the project node for name.
func ProjectRef(projectName string) graphstore.Ref {
	return graphstore.Ref{Label: LabelProject, Key: map[string]any{"project_name": projectName}}
}

// DirectoryRef addresses a directory node. Both key properties are load
// bearing: project_name scopes tenancy and guarantees that a node created
// as an edge side effect still carries it.
func DirectoryRef(projectName, dirPath string) graphstore.Ref {
	return graphstore.Ref{Label: LabelDirectory, Key: map[string]any{
		"project_name": projectName,
		"path":         dirPath,
	}}
}

// FileRef addresses a file node.
func FileRef(projectName, filePath string) graphstore.Ref {
	return graphstore.Ref{Label: LabelFile, Key: map[string]any{
		"project_name": projectName,
		"path":         filePath,
	}}
}

// EntityRef addresses an entity node. project_name is part of the key so a
// placeholder created by a relationship upsert can never exist without it.
func EntityRef(projectName, entityID string) graphstore.Ref {
	return graphstore.Ref{Label: LabelEntity, Key: map[string]any{
		"project_name": projectName,
		"entity_id":    entityID,
	}}
}

// TreeIngestor builds and maintains the containment tree.
type TreeIngestor struct {
	store  graphstore.Store
	logger *zap.Logger
}

// NewTreeIngestor creates a tree ingestor.
func NewTreeIngestor(store graphstore.Store, logger *zap.Logger) *TreeIngestor {
	return &TreeIngestor{store: store, logger: logger}
}

// IngestTree ensures the containment tree is complete for the given file
// paths: the project node exists, every ancestor directory of every file
// exists with project_name set, and each node is connected to its parent up
// to the project node. Re-running with the same inputs is a no-op at the
// graph level.
//
// The project name must be non-empty after trimming; a silent
// default-to-empty here is exactly the historical orphan-node bug, so the
// check fails fast before any write.
func (t *TreeIngestor) IngestTree(ctx context.Context, projectName, projectRoot string, filePaths []string) error {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return errkind.New(errkind.KindInvalidProject, "project name is empty")
	}

	if err := t.store.UpsertNode(ctx, ProjectRef(projectName), map[string]any{
		"name": projectName,
	}); err != nil {
		return errkind.Wrap(errkind.KindGraphStoreUnavailable, "upsert project node", err)
	}

	// Collect every ancestor directory across the batch, then write them
	// deepest-first (leaf-to-root). A containment edge whose parent
	// directory is not written yet creates that parent from its ref's key,
	// which carries project_name; the parent's own upsert follows.
	dirSet := make(map[string]struct{})
	for _, fp := range filePaths {
		for _, dir := range ancestorDirs(projectRoot, fp) {
			dirSet[dir] = struct{}{}
		}
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], "/") > strings.Count(dirs[j], "/")
	})

	for _, dir := range dirs {
		ref := DirectoryRef(projectName, dir)
		if err := t.store.UpsertNode(ctx, ref, map[string]any{
			"name": path.Base(dir),
		}); err != nil {
			return errkind.Wrap(errkind.KindGraphStoreUnavailable, "upsert directory node", err)
		}
		parent := t.parentRef(projectName, dir)
		if err := t.store.UpsertEdge(ctx, EdgeContains, parent, ref, nil); err != nil {
			return errkind.Wrap(errkind.KindGraphStoreUnavailable, "link directory to parent", err)
		}
	}

	for _, fp := range filePaths {
		rel := RelativePath(projectRoot, fp)
		if rel == "" {
			continue
		}
		ref := FileRef(projectName, rel)
		if err := t.store.UpsertNode(ctx, ref, map[string]any{
			"name": path.Base(rel),
		}); err != nil {
			return errkind.Wrap(errkind.KindGraphStoreUnavailable, "upsert file node", err)
		}
		parent := t.parentRef(projectName, rel)
		if err := t.store.UpsertEdge(ctx, EdgeContains, parent, ref, nil); err != nil {
			return errkind.Wrap(errkind.KindGraphStoreUnavailable, "link file to parent", err)
		}
	}
	return nil
}

// parentRef returns the containing directory of p, or the project node when
// p sits at the root.
func (t *TreeIngestor) parentRef(projectName, p string) graphstore.Ref {
	dir := path.Dir(p)
	if dir == "." || dir == "/" || dir == "" {
		return ProjectRef(projectName)
	}
	return DirectoryRef(projectName, dir)
}

// RelativePath strips projectRoot from fp and normalizes separators. Every
// containment write must key file nodes off this canonical form: a file
// node written under any other spelling of the same path is disconnected
// from the project tree.
func RelativePath(projectRoot, fp string) string {
	p := path.Clean(strings.ReplaceAll(fp, "\\", "/"))
	if projectRoot != "" {
		root := path.Clean(strings.ReplaceAll(projectRoot, "\\", "/"))
		p = strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
	}
	return strings.TrimPrefix(p, "/")
}

// ancestorDirs lists the directories containing fp, relative to the
// project root, leaf-last (e.g. "a/b/c.py" → ["a", "a/b"]).
func ancestorDirs(projectRoot, fp string) []string {
	rel := RelativePath(projectRoot, fp)
	var out []string
	dir := path.Dir(rel)
	for dir != "." && dir != "/" && dir != "" {
		out = append(out, dir)
		dir = path.Dir(dir)
	}
	// Reverse so the shallowest ancestor comes first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
