package access

// TableActions are the row controls of a module listing.
type TableActions struct {
	Add    bool `json:"add"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	View   bool `json:"view"`
}

// TableActionsFor maps a capability onto listing controls.
func TableActionsFor(c Capability) TableActions {
	return TableActions{
		Add:    c.Add,
		Edit:   c.Update,
		Delete: c.Delete,
		View:   c.View,
	}
}

// ShowActionsColumn is false when no control would render.
func (t TableActions) ShowActionsColumn() bool {
	return t.Add || t.Edit || t.Delete || t.View
}

// UserControls are the controls of the user detail screen.
type UserControls struct {
	EditUser        bool `json:"editUser"`
	EditRole        bool `json:"editRole"`
	DisableUser     bool `json:"disableUser"`
	SeePermissions  bool `json:"seePermissions"`
	EditPermissions bool `json:"editPermissions"`
}

// UserControlsFor derives the user detail controls from caps.
func UserControlsFor(caps CapabilityMap) UserControls {
	return UserControls{
		EditUser:        caps.Can(ModuleUsers, ActionUpdate),
		EditRole:        caps.Can(ModuleRoles, ActionUpdate),
		DisableUser:     caps.Can(ModuleUsers, ActionUpdate),
		SeePermissions:  caps.Can(ModulePermission, ActionView),
		EditPermissions: caps.Can(ModulePermission, ActionUpdate),
	}
}
