package config

// SuperadminConfig describes the bootstrap SUPERADMIN account created by
// cmd/create-superadmin.
type SuperadminConfig struct {
	Email     string
	Password  string
	Name      string
	StudentID string
	Phone     string
	Grade     int
}

// LoadSuperadmin reads SUPERADMIN_* variables.  Email and password are
// required; the rest have placeholders.
func LoadSuperadmin() SuperadminConfig {
	return SuperadminConfig{
		Email:     must("SUPERADMIN_EMAIL"),
		Password:  must("SUPERADMIN_PASSWORD"),
		Name:      envStr("SUPERADMIN_NAME", "Super Admin"),
		StudentID: envStr("SUPERADMIN_STUDENT_ID", "00000000"),
		Phone:     envStr("SUPERADMIN_PHONE", "010-0000-0000"),
		Grade:     mustIntOr("SUPERADMIN_GRADE", 1),
	}
}

func mustIntOr(key string, d int) int {
	if envStr(key, "") == "" {
		return d
	}
	return mustInt(key)
}
