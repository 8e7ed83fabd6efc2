package types

import "time"

// RecentFile is one recently-modified note in the working context, annotated
// with its staircase recency score and per-file entity summaries.
type RecentFile struct {
	Path            string    `json:"path"`
	LastModified    time.Time `json:"lastModified"`
	RecencyScore    float64   `json:"recencyScore"`
	Directory       string    `json:"directory"`
	Tags            []string  `json:"tags,omitempty"`
	Mentions        []string  `json:"mentions,omitempty"`
	ActiveTodoCount int       `json:"activeTodoCount"`
}

// ProjectCluster groups recent files by top-level path segment into a
// candidate project, scored by file count and summed recency.
type ProjectCluster struct {
	Name          string   `json:"name"`
	FileCount     int      `json:"fileCount"`
	ActivityScore float64  `json:"activityScore"`
	ExampleFiles  []string `json:"exampleFiles,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// WeightedTerm is a tag or mention value with its recency-weighted frequency.
type WeightedTerm struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// PendingTodo is an open todo within the context window, annotated with its
// file's recency score and its age in days.
type PendingTodo struct {
	Text         string  `json:"text"`
	NotePath     string  `json:"notePath"`
	RecencyScore float64 `json:"recencyScore"`
	AgeDays      int     `json:"ageDays"`
}

// WorkingContext is a cached, recency-weighted snapshot of what the user is
// currently focused on. It is rebuilt wholesale, never partially mutated.
type WorkingContext struct {
	RecentFiles       []RecentFile     `json:"recentFiles"`
	ActiveProjects    []ProjectCluster `json:"activeProjects"`
	HotTopics         []WeightedTerm   `json:"hotTopics"`
	HotMentions       []WeightedTerm   `json:"hotMentions"`
	PendingTodos      []PendingTodo    `json:"pendingTodos"`
	WorkTrajectory    string           `json:"workTrajectory"`
	ContextWindowDays int              `json:"contextWindowDays"`
	BuiltAt           time.Time        `json:"builtAt"`
}

// DefaultContextWindowDays is the window used when nothing has been
// configured yet.
const DefaultContextWindowDays = 7

// ValidContextWindowDays lists the context window sizes the builder accepts.
var ValidContextWindowDays = []int{7, 14, 30}

// IsValidContextWindowDays checks if the given window size is allowed.
func IsValidContextWindowDays(days int) bool {
	for _, d := range ValidContextWindowDays {
		if d == days {
			return true
		}
	}
	return false
}
