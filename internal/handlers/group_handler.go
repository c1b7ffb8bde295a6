package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stonksnote/internal/models"
	"stonksnote/internal/services"
)

// GroupHandler manages groups and user membership.
type GroupHandler struct {
	permissions  services.PermissionServicer
	auditService services.AuditServicer
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(permissions services.PermissionServicer, auditService services.AuditServicer) *GroupHandler {
	return &GroupHandler{permissions: permissions, auditService: auditService}
}

// CreateGroupRequest is the payload for a new group.
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=50"`
	Summary     string   `json:"summary" binding:"max=255"`
	Permissions []string `json:"permissions" binding:"omitempty,max=200,dive,perm_code"`
}

// UpdateGroupRequest changes a group. Nil fields are left alone and a nil
// Permissions list keeps the current codes.
type UpdateGroupRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=50"`
	Summary     *string  `json:"summary" binding:"omitempty,max=255"`
	Permissions []string `json:"permissions" binding:"omitempty,max=200,dive,perm_code"`
}

// GroupPermissionsRequest replaces a group's permission codes.
type GroupPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"max=200,dive,perm_code"`
}

// UserGroupsRequest adds and removes groups from a user.
type UserGroupsRequest struct {
	Add    []string `json:"add" binding:"max=50,dive,min=1,max=50"`
	Remove []string `json:"remove" binding:"max=50,dive,min=1,max=50"`
}

// ListGroups returns all groups
// @Summary     List groups
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  models.Group "Groups"
// @Failure     403 {object} ErrorResponse "Permission denied"
// @Router      /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.permissions.ListGroups()
	if err != nil {
		respondWithError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(groups))
	for i := range groups {
		g := groups[i].ToMap("deleted_at")
		g["permissions"] = groups[i].PermissionCodes()
		out = append(out, g)
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// CreateGroup adds a group
// @Summary     Create group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGroupRequest true "Group"
// @Success     201 {object} models.Group "Created group"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown permission"
// @Failure     409 {object} ErrorResponse "Duplicate group"
// @Router      /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	group, err := h.permissions.CreateGroup(req.Name, req.Summary, req.Permissions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionGroupChange, "group", group.ID, c.ClientIP(),
		map[string]any{"created": group.Name, "permissions": req.Permissions})

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// UpdateGroup edits a group
// @Summary     Update group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Group ID"
// @Param       request body UpdateGroupRequest true "Fields to change"
// @Success     200 {object} models.Group "Updated group"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [patch]
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	group, err := h.permissions.UpdateGroup(id, services.GroupInput{
		Name:        req.Name,
		Summary:     req.Summary,
		Permissions: req.Permissions,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionGroupChange, "group", group.ID, c.ClientIP(),
		map[string]any{"updated": group.Name})

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup removes a group and its memberships
// @Summary     Delete group
// @Tags        groups
// @Security    BearerAuth
// @Param       name path string true "Group name"
// @Success     204 "Deleted"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{name} [delete]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	name := c.Param("name")
	if err := h.permissions.DeleteGroup(name); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionGroupChange, "group", "", c.ClientIP(),
		map[string]any{"deleted": name})

	c.Status(http.StatusNoContent)
}

// SetGroupPermissions replaces a group's permissions
// @Summary     Set group permissions
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       name    path string                  true "Group name"
// @Param       request body GroupPermissionsRequest true "Permission codes"
// @Success     200 {object} models.Group "Updated group"
// @Failure     404 {object} ErrorResponse "Group or permission not found"
// @Router      /groups/{name}/permissions [put]
func (h *GroupHandler) SetGroupPermissions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req GroupPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	group, err := h.permissions.SetGroupPermissions(c.Param("name"), req.Permissions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionGroupChange, "group", group.ID, c.ClientIP(),
		map[string]any{"permissions": req.Permissions})

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateUserGroups changes a user's group membership
// @Summary     Change user groups
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "User ID"
// @Param       request body UserGroupsRequest true "Groups to add and remove"
// @Success     200 {object} map[string]interface{} "Resulting groups"
// @Failure     404 {object} ErrorResponse "User or group not found"
// @Router      /users/{id}/groups [put]
func (h *GroupHandler) UpdateUserGroups(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	targetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UserGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if len(req.Add) > 0 {
		if err := h.permissions.AddGroups(targetID, req.Add...); err != nil {
			respondWithError(c, err)
			return
		}
	}
	if len(req.Remove) > 0 {
		if err := h.permissions.RemoveGroups(targetID, req.Remove...); err != nil {
			respondWithError(c, err)
			return
		}
	}
	groups, err := h.permissions.GetGroups(targetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, models.AuditActionGroupChange, "user", targetID, c.ClientIP(),
		map[string]any{"add": req.Add, "remove": req.Remove})

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
