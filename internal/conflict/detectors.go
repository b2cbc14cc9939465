package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ajitpratap0/ssot-registry/internal/classifier"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

const evidenceRecommendation = "reviewer_recommendation"

// live reports whether an alias still takes part in detection. Deprecated
// aliases are retired and never conflict.
func live(a models.AliasDefinition) bool {
	return a.Status != models.AliasStatusDeprecated
}

// DetectAliasDuplicates reports alias names used in two or more contexts
// with different canonicals.
func (d *Detector) DetectAliasDuplicates(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.aliasDuplicates(snap))
}

func (d *Detector) aliasDuplicates(snap *models.Snapshot) []record {
	byName := make(map[string][]models.AliasDefinition)
	for _, ctx := range sortedKeys(snap.Aliases) {
		for _, name := range sortedKeys(snap.Aliases[ctx]) {
			a := snap.Aliases[ctx][name]
			if live(a) {
				byName[name] = append(byName[name], a)
			}
		}
	}

	var out []record
	for _, name := range sortedKeys(byName) {
		group := byName[name]
		if len(group) < 2 {
			continue
		}
		canonicals := make(map[string]bool)
		for _, a := range group {
			canonicals[a.Canonical] = true
		}
		if len(canonicals) < 2 {
			continue
		}

		affected := make([]string, 0, len(group))
		contexts := make([]string, 0, len(group))
		keys := make([]models.AliasKey, 0, len(group))
		for _, a := range group {
			affected = append(affected, AliasEntityID(a.Context, a.Name))
			contexts = append(contexts, a.Context)
			keys = append(keys, models.AliasKey{Context: a.Context, Name: a.Name})
		}
		out = append(out, d.newRecord(models.ConflictAliasDuplicate, models.SeverityHigh, models.StrategyEscalate,
			fmt.Sprintf("alias %q points at %d different canonicals across contexts", name, len(canonicals)),
			affected,
			map[string]any{"name": name, "contexts": contexts, "canonicals": sortedKeys(canonicals)},
			keys,
		))
	}
	return out
}

// DetectCanonicalMismatches reports aliases whose canonical anchor does not exist.
func (d *Detector) DetectCanonicalMismatches(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.canonicalMismatches(snap))
}

func (d *Detector) canonicalMismatches(snap *models.Snapshot) []record {
	var out []record
	for _, ctx := range sortedKeys(snap.Aliases) {
		for _, name := range sortedKeys(snap.Aliases[ctx]) {
			a := snap.Aliases[ctx][name]
			if !live(a) {
				continue
			}
			if _, ok := snap.Anchors[a.Canonical]; ok {
				continue
			}
			out = append(out, d.newRecord(models.ConflictCanonicalMismatch, models.SeverityCritical, models.StrategyEscalate,
				fmt.Sprintf("alias %q in context %q references unknown anchor %q", name, ctx, a.Canonical),
				[]string{AliasEntityID(ctx, name)},
				map[string]any{"canonical": a.Canonical},
				[]models.AliasKey{{Context: ctx, Name: name}},
			))
		}
	}
	return out
}

// DetectContextOverlaps reports pairs of confusably similar context names.
func (d *Detector) DetectContextOverlaps(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.contextOverlaps(snap))
}

func (d *Detector) contextOverlaps(snap *models.Snapshot) []record {
	contexts := sortedKeys(snap.Aliases)
	var out []record
	for i := 0; i < len(contexts); i++ {
		for j := i + 1; j < len(contexts); j++ {
			ratio := Similarity(contexts[i], contexts[j])
			if ratio <= d.cfg.SimilarityThreshold {
				continue
			}
			out = append(out, d.newRecord(models.ConflictContextOverlap, models.SeverityMedium, models.StrategyRename,
				fmt.Sprintf("contexts %q and %q are confusably similar", contexts[i], contexts[j]),
				[]string{contexts[i], contexts[j]},
				map[string]any{"similarity": ratio, "threshold": d.cfg.SimilarityThreshold},
				nil,
			))
		}
	}
	return out
}

// DetectNamingConflicts reports confusably similar alias names within one context.
func (d *Detector) DetectNamingConflicts(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.namingConflicts(snap))
}

func (d *Detector) namingConflicts(snap *models.Snapshot) []record {
	var out []record
	for _, ctx := range sortedKeys(snap.Aliases) {
		var names []string
		for _, name := range sortedKeys(snap.Aliases[ctx]) {
			if live(snap.Aliases[ctx][name]) {
				names = append(names, name)
			}
		}
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				ratio := Similarity(names[i], names[j])
				if ratio <= d.cfg.SimilarityThreshold {
					continue
				}
				out = append(out, d.newRecord(models.ConflictNaming, models.SeverityMedium, models.StrategyRename,
					fmt.Sprintf("aliases %q and %q in context %q are confusably similar", names[i], names[j], ctx),
					[]string{AliasEntityID(ctx, names[i]), AliasEntityID(ctx, names[j])},
					map[string]any{"context": ctx, "similarity": ratio, "threshold": d.cfg.SimilarityThreshold},
					[]models.AliasKey{{Context: ctx, Name: names[i]}, {Context: ctx, Name: names[j]}},
				))
			}
		}
	}
	return out
}

// DetectSemanticConflicts reports aliases whose name and canonical id fall
// into different taxonomy categories.
func (d *Detector) DetectSemanticConflicts(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.semanticConflicts(snap))
}

func (d *Detector) semanticConflicts(snap *models.Snapshot) []record {
	var out []record
	for _, ctx := range sortedKeys(snap.Aliases) {
		for _, name := range sortedKeys(snap.Aliases[ctx]) {
			a := snap.Aliases[ctx][name]
			if !live(a) {
				continue
			}
			aliasCat := d.classifier.Classify(name)
			canonCat := d.classifier.Classify(a.Canonical)
			if aliasCat == classifier.CategoryNone || canonCat == classifier.CategoryNone || aliasCat == canonCat {
				continue
			}
			out = append(out, d.newRecord(models.ConflictSemantic, models.SeverityHigh, models.StrategyEscalate,
				fmt.Sprintf("alias %q (%s) names canonical %q (%s)", name, aliasCat, a.Canonical, canonCat),
				[]string{AliasEntityID(ctx, name), a.Canonical},
				map[string]any{"alias_category": string(aliasCat), "canonical_category": string(canonCat)},
				[]models.AliasKey{{Context: ctx, Name: name}},
			))
		}
	}
	return out
}

// DetectDependencyConflicts reports pairs of anchors that generate each other.
func (d *Detector) DetectDependencyConflicts(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.dependencyConflicts(snap))
}

func (d *Detector) dependencyConflicts(snap *models.Snapshot) []record {
	var out []record
	for _, a := range sortedKeys(snap.Anchors) {
		for _, b := range uniqueSorted(snap.Anchors[a].Generates) {
			if b <= a {
				continue
			}
			other, ok := snap.Anchors[b]
			if !ok || !contains(other.Generates, a) {
				continue
			}
			out = append(out, d.newRecord(models.ConflictDependency, models.SeverityCritical, models.StrategyEscalate,
				fmt.Sprintf("anchors %q and %q generate each other", a, b),
				[]string{a, b},
				map[string]any{"cycle": []string{a, b, a}},
				nil,
			))
		}
	}
	return out
}

// DetectDependencyCycles reports generates cycles that are not 2-cycles:
// self references and cycles through three or more anchors.
func (d *Detector) DetectDependencyCycles(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.dependencyCycles(snap))
}

func (d *Detector) dependencyCycles(snap *models.Snapshot) []record {
	var out []record
	for _, cycle := range newDependencyGraph(snap.Anchors).cycles() {
		if len(cycle) == 2 {
			continue
		}
		path := append(append([]string(nil), cycle...), cycle[0])
		out = append(out, d.newRecord(models.ConflictDependency, models.SeverityCritical, models.StrategyEscalate,
			fmt.Sprintf("generates cycle of length %d: %s", len(cycle), strings.Join(path, " -> ")),
			cycle,
			map[string]any{"cycle": path},
			nil,
		))
	}
	return out
}

// DetectVersionConflicts reports families whose anchors carry more than one
// distinct version.
func (d *Detector) DetectVersionConflicts(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.versionConflicts(snap))
}

func (d *Detector) versionConflicts(snap *models.Snapshot) []record {
	var out []record
	for _, g := range familyGroups(snap, func(a models.Anchor) string { return a.Version }) {
		versions := sortVersions(g.values)
		out = append(out, d.newRecord(models.ConflictVersion, models.SeverityHigh, models.StrategyEscalate,
			fmt.Sprintf("family %q has %d versions", g.family, len(versions)),
			g.anchors,
			map[string]any{
				"family":         g.family,
				"versions":       versions,
				"latest_version": versions[len(versions)-1],
			},
			nil,
		))
	}
	return out
}

// DetectOwnershipConflicts reports families whose anchors have more than one
// distinct owner.
func (d *Detector) DetectOwnershipConflicts(snap *models.Snapshot) []models.ConflictDetection {
	return detections(d.ownershipConflicts(snap))
}

func (d *Detector) ownershipConflicts(snap *models.Snapshot) []record {
	var out []record
	for _, g := range familyGroups(snap, func(a models.Anchor) string { return a.Owner }) {
		out = append(out, d.newRecord(models.ConflictOwnership, models.SeverityMedium, models.StrategyEscalate,
			fmt.Sprintf("family %q has %d owners", g.family, len(g.values)),
			g.anchors,
			map[string]any{"family": g.family, "owners": g.values},
			nil,
		))
	}
	return out
}

type familyGroup struct {
	family  string
	anchors []string
	values  []string
}

// familyGroups returns, per family, the anchors with a non-empty value and
// the distinct values, keeping only families with more than one value.
func familyGroups(snap *models.Snapshot, value func(models.Anchor) string) []familyGroup {
	anchors := make(map[string][]string)
	values := make(map[string]map[string]bool)
	for _, id := range sortedKeys(snap.Anchors) {
		a := snap.Anchors[id]
		v := value(a)
		if a.Family == "" || v == "" {
			continue
		}
		anchors[a.Family] = append(anchors[a.Family], id)
		if values[a.Family] == nil {
			values[a.Family] = make(map[string]bool)
		}
		values[a.Family][v] = true
	}

	var out []familyGroup
	for _, family := range sortedKeys(anchors) {
		if len(values[family]) < 2 {
			continue
		}
		out = append(out, familyGroup{family: family, anchors: anchors[family], values: sortedKeys(values[family])})
	}
	return out
}

// sortVersions orders semantic versions ascending; strings that do not parse
// sort lexically before them, so the last element is the highest version.
func sortVersions(raw []string) []string {
	var (
		parsed  []*semver.Version
		origin  = make(map[*semver.Version]string)
		invalid []string
	)
	for _, s := range raw {
		v, err := semver.NewVersion(s)
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		parsed = append(parsed, v)
		origin[v] = s
	}
	sort.Strings(invalid)
	sort.SliceStable(parsed, func(i, j int) bool {
		if c := parsed[i].Compare(parsed[j]); c != 0 {
			return c < 0
		}
		return origin[parsed[i]] < origin[parsed[j]]
	})

	out := invalid
	for _, v := range parsed {
		out = append(out, origin[v])
	}
	return out
}

func detections(recs []record) []models.ConflictDetection {
	out := make([]models.ConflictDetection, len(recs))
	for i := range recs {
		out[i] = recs[i].detection
	}
	return out
}

func uniqueSorted(in []string) []string {
	set := make(map[string]bool, len(in))
	for _, s := range in {
		set[s] = true
	}
	return sortedKeys(set)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
