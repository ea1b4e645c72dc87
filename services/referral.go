package services

import (
	"sort"
	"strings"
)

// ReferralBonusRates maps referral distance (1 = direct referrer) to the
// commission rate applied to a descendant's deposit. Ancestors beyond
// MaxReferralDepth earn nothing.
var ReferralBonusRates = map[int]float64{
	1: 0.10,
	2: 0.05,
	3: 0.03,
	4: 0.02,
	5: 0.01,
}

const MaxReferralDepth = 5

// ReferralEarningsCapRatio caps each user's aggregate referral earnings at
// this fraction of their own lifetime deposits.
const ReferralEarningsCapRatio = 0.5

// ReferralRate returns the commission rate for an ancestor at the given
// distance, 0 beyond the supported depth.
func ReferralRate(distance int) float64 {
	if distance < 1 || distance > MaxReferralDepth {
		return 0
	}
	return ReferralBonusRates[distance]
}

// AncestorRef identifies one ancestor in a referral chain.
type AncestorRef struct {
	UserID   string
	Distance int
}

// AncestorsOf walks a dot-delimited ancestry path ("root.....parent.self") and
// returns the ancestors of the final element, nearest first, truncated at
// MaxReferralDepth.
func AncestorsOf(path string) []AncestorRef {
	segments := splitPath(path)
	if len(segments) < 2 {
		return nil
	}

	// drop self, then walk outward
	chain := segments[:len(segments)-1]
	var ancestors []AncestorRef
	for i := len(chain) - 1; i >= 0; i-- {
		distance := len(chain) - i
		if distance > MaxReferralDepth {
			break
		}
		ancestors = append(ancestors, AncestorRef{UserID: chain[i], Distance: distance})
	}
	return ancestors
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, ".") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// PathEntry is the flat representation of one member of a referral network.
type PathEntry struct {
	UserID string `json:"user_id"`
	Path   string `json:"path"`
}

// ReferralNode is one node of the reconstructed downline tree. Level is the
// distance from the tree root (root = 0).
type ReferralNode struct {
	UserID   string          `json:"user_id"`
	Path     string          `json:"path"`
	Level    int             `json:"level"`
	Children []*ReferralNode `json:"children,omitempty"`
}

// BuildReferralTree reconstructs the downline tree rooted at rootID from a
// flat list of path-tagged entries. Entries whose parent is absent from the
// list (and are not the root) are dropped. Children are ordered by user id
// for a stable layout.
func BuildReferralTree(rootID string, entries []PathEntry) *ReferralNode {
	byPath := make(map[string]*ReferralNode, len(entries))
	var root *ReferralNode

	for _, e := range entries {
		node := &ReferralNode{UserID: e.UserID, Path: e.Path}
		byPath[e.Path] = node
		if e.UserID == rootID {
			root = node
		}
	}
	if root == nil {
		return nil
	}

	rootDepth := len(splitPath(root.Path))
	for _, node := range byPath {
		if node == root {
			continue
		}
		segments := splitPath(node.Path)
		node.Level = len(segments) - rootDepth
		parentPath := strings.Join(segments[:len(segments)-1], ".")
		if parent, ok := byPath[parentPath]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	for _, node := range byPath {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].UserID < node.Children[j].UserID
		})
	}
	return root
}

// FlattenReferralTree walks the tree depth-first and returns every node in
// visit order. Levels are preserved, so flattening a freshly built tree
// reproduces the original membership.
func FlattenReferralTree(root *ReferralNode) []*ReferralNode {
	if root == nil {
		return nil
	}
	out := []*ReferralNode{root}
	for _, child := range root.Children {
		out = append(out, FlattenReferralTree(child)...)
	}
	return out
}
