// Package compliance decides which compliance issues a repository needs and
// keeps the tracking issues in step with the files on its default branch.
package compliance

import "strings"

// Kind describes one required file and the issue that tracks its absence.
type Kind struct {
	// ID is the short name used in logs and dedup keys.
	ID string
	// Title is the exact issue title. It is the dedup key for issues and the
	// dispatch key for comment commands.
	Title string
	// Path is the file location at the repository root.
	Path string
	// Prerequisite names a kind that must be present before this kind is
	// tracked.
	Prerequisite string
	// Affirmative is the token that asks the bot to generate the file. Kinds
	// without one take an argument instead.
	Affirmative string

	body string
}

// Body renders the issue body for the given mention token.
func (k Kind) Body(mention string) string {
	return strings.ReplaceAll(k.body, "{{mention}}", mention)
}

var (
	// License tracks the LICENSE file.
	License = Kind{
		ID:    "license",
		Title: "No license file found",
		Path:  "LICENSE",
		body: "To make your software reusable a license file is expected at the root level of your repository, as recommended in the [FAIR-BioRS Guidelines](https://fair-biors.org). " +
			"No such file was found. It is important to choose your license early since it will affect your software's dependencies. " +
			"If you would like me to add a license file for you, please reply here with the identifier of the license you would like from the [SPDX License List](https://spdx.org/licenses/) " +
			"(e.g., comment “{{mention}} MIT” for the MIT license). " +
			"I will then create a new branch with the corresponding license file and open a pull request for you to review and approve. " +
			"You can also add a license file yourself and I will close this issue when I detect it on the main branch. " +
			"If you need help with choosing a license, you can check out https://choosealicense.com.",
	}

	// Citation tracks the CITATION.cff file. It is only tracked once a
	// license exists.
	Citation = Kind{
		ID:           "citation",
		Title:        "No citation file found",
		Path:         "CITATION.cff",
		Prerequisite: "license",
		Affirmative:  "YES",
		body: "No CITATION.cff file was found at the root of your repository. " +
			"It is typically used to let others know how you would like them to cite your work. " +
			"The citation file format is plain text with human- and machine-readable citation information.\n\n" +
			"If you would like me to generate a CITATION.cff file for you, please reply with \"{{mention}} YES\" " +
			"and I will create a new branch with the CITATION.cff file and open a pull request for you to review and approve. " +
			"You can also add a CITATION.cff file yourself and I will close this issue when I detect it on the main branch.",
	}
)

// Kinds returns the table in evaluation order. A prerequisite always precedes
// the kinds that depend on it.
func Kinds() []Kind {
	return []Kind{License, Citation}
}

// ByTitle finds the kind tracked by an issue title.
func ByTitle(title string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Title == title {
			return k, true
		}
	}
	return Kind{}, false
}

// ByPath finds the kind for a root-level file path.
func ByPath(path string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Path == path {
			return k, true
		}
	}
	return Kind{}, false
}
