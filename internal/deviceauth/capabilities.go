package deviceauth

// Capability represents a named action an authenticated device may perform.
type Capability string

// Capability constants.
const (
	CapReportFindRead   Capability = "report.find:read"
	CapReportFindWrite  Capability = "report.find:write"
	CapReportIssueRead  Capability = "report.issue:read"
	CapReportIssueWrite Capability = "report.issue:write"
)

// capabilityRoles maps each capability to the roles that grant it.
// This is the single source of truth for the device authorisation model.
// Found-property reports belong to front desk and housekeeping; maintenance
// issues belong to maintenance and housekeeping (housekeepers raise most of
// them during room turnover).
var capabilityRoles = map[Capability][]Role{
	CapReportFindRead:   {RoleFrontDesk, RoleHousekeeping},
	CapReportFindWrite:  {RoleFrontDesk, RoleHousekeeping},
	CapReportIssueRead:  {RoleMaintenance, RoleHousekeeping},
	CapReportIssueWrite: {RoleMaintenance, RoleHousekeeping},
}

// HasCapability returns true if the device may perform the capability.
// A device with an empty role set is unrestricted: devices provisioned
// before roles existed carry no roles and must keep working.
func HasCapability(d *Device, cap Capability) bool {
	if len(d.Roles) == 0 {
		return true
	}
	for _, role := range capabilityRoles[cap] {
		if d.HasRole(role) {
			return true
		}
	}
	return false
}

// RolesForCapability returns the roles that grant a capability.
// Returns nil for unknown capabilities.
func RolesForCapability(cap Capability) []Role {
	roles := capabilityRoles[cap]
	if roles == nil {
		return nil
	}
	result := make([]Role, len(roles))
	copy(result, roles)
	return result
}
