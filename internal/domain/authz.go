// Package domain 中的授权矩阵。
// 纯函数，不做IO，所有管理操作的权限判定收敛到这里。
package domain

// CanModify 判断操作者能否修改目标用户
// 超级管理员可以修改任何人；管理员只能修改普通用户和会员；
// 其余角色没有管理权限。
func CanModify(actor, target *User) bool {
	if actor.IsSuper() {
		return true
	}
	if actor.Role == UserRoleAdmin {
		return !target.IsSuper() && target.Role != UserRoleAdmin
	}
	return false
}

// CanAssignRole 判断操作者能否授予指定角色
// superadmin 角色永远不能通过接口授予；授予 admin 需要超级管理员。
func CanAssignRole(actor *User, newRole UserRole) bool {
	if newRole == UserRoleSuperAdmin {
		return false
	}
	if newRole == UserRoleAdmin {
		return actor.IsSuper()
	}
	return actor.IsSuper() || actor.Role == UserRoleAdmin
}

// CanDelete 判断操作者能否删除目标用户
// 超级管理员账号任何人都不能删除。
func CanDelete(actor, target *User) bool {
	if target.IsSuper() {
		return false
	}
	return CanModify(actor, target)
}
