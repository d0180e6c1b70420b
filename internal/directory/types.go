package directory

import "strconv"

// Department is a department as reported by the directory.
type Department struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parentid"`
	Order    int    `json:"order"`
}

// ExternalID returns the department id in the string form stored locally.
func (d Department) ExternalID() string {
	return strconv.Itoa(d.ID)
}

// ParentExternalID returns the parent id in the string form stored locally.
func (d Department) ParentExternalID() string {
	return strconv.Itoa(d.ParentID)
}

// UserDetail is a directory member. Optional fields are empty when the
// endpoint that produced the value does not carry them.
type UserDetail struct {
	UserID         string `json:"userid"`
	Name           string `json:"name"`
	Department     []int  `json:"department"`
	Mobile         string `json:"mobile,omitempty"`
	Email          string `json:"email,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	MainDepartment int    `json:"main_department,omitempty"`
}

// PrimaryDepartment returns the external id of the member's primary
// department, or "" when none is declared.
func (u UserDetail) PrimaryDepartment() string {
	if u.MainDepartment != 0 {
		return strconv.Itoa(u.MainDepartment)
	}
	if len(u.Department) > 0 {
		return strconv.Itoa(u.Department[0])
	}
	return ""
}

type apiStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type tokenResponse struct {
	apiStatus
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type departmentListResponse struct {
	apiStatus
	Department []Department `json:"department"`
}

type userListResponse struct {
	apiStatus
	UserList []UserDetail `json:"userlist"`
}

type userGetResponse struct {
	apiStatus
	UserDetail
}
