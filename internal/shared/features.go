package shared

// Feature names for the protectable resource areas of the platform.
// Permission rows reference these by name.
const (
	FeatureUserManagement         = "user_management"
	FeatureRoleManagement         = "role_management"
	FeatureFacultyManagement      = "faculty_management"
	FeatureStudyProgramManagement = "study_program_management"
	FeatureLecturerManagement     = "lecturer_management"
	FeatureStudentManagement      = "student_management"
	FeaturePositionManagement     = "position_management"
)

// SuperAdminRole is the system-protected role. It cannot be renamed,
// deleted or duplicated, and its holder cannot be deactivated.
const SuperAdminRole = "SuperAdmin"

// CoreFeatures lists every feature the platform seeds on first boot.
func CoreFeatures() []string {
	return []string{
		FeatureUserManagement,
		FeatureRoleManagement,
		FeatureFacultyManagement,
		FeatureStudyProgramManagement,
		FeatureLecturerManagement,
		FeatureStudentManagement,
		FeaturePositionManagement,
	}
}
