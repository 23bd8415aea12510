package safety

// Options carries the confirmation-related flags shared by commands that can
// modify or destroy state.
type Options struct {
	// DryRun previews actions; prompts are skipped and treated as declined.
	DryRun bool
	// Yes answers every prompt affirmatively for unattended use.
	Yes bool
}
