package domain

// State is a step of the settings conversation
type State int

const (
	StateEnd State = iota
	StateHome
	StateWaitForImport
	StateTemplate
	StateAsFiles
	StateGroupsHome
	StateListGroups
	StateEditGroup1
	StateEditGroup2
	StateDeleteGroup1
	StateDeleteGroup2
	StateTestGroup
)

var stateNames = map[State]string{
	StateEnd:           "end",
	StateHome:          "home",
	StateWaitForImport: "wait_for_import",
	StateTemplate:      "template",
	StateAsFiles:       "as_files",
	StateGroupsHome:    "subscription_groups_home",
	StateListGroups:    "list_groups",
	StateEditGroup1:    "edit_group_1",
	StateEditGroup2:    "edit_group_2",
	StateDeleteGroup1:  "delete_group_1",
	StateDeleteGroup2:  "delete_group_2",
	StateTestGroup:     "test_group",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the conversation is over
func (s State) Terminal() bool {
	return s == StateEnd
}
