package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"exam:view",
		"enrollment:create",
		"enrollment:view-own",
		"enrollment:withdraw-own",
		"module:complete",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"certificate:request-own",
		"user:change_password",
	},
	"teacher": {
		"course:view",
		"course:author",
		"exam:view",
		"exam:view-keys",
		"enrollment:create",
		"enrollment:view-all",
		"attempt:view-all",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
