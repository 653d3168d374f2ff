package domain

import "strings"

// DepartmentGroup is a heading in the department directory with its members.
type DepartmentGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Departments is the institution's directory of teaching departments and
// administrative units.
var Departments = []DepartmentGroup{
	{
		Name: "แผนก",
		Members: []string{
			"แผนกคอมพิวเตอร์โปรแกรมเมอร์",
			"แผนกการบัญชี",
			"แผนกการตลาด",
			"แผนกการจัดการสำนักงาน/การจัดการโลจิสติกส์และซัพพลายเชน",
			"แผนกดิจิทัลกราฟิก",
			"แผนกการท่องเที่ยว",
			"แผนกการโรงแรม",
			"แผนกเทคโนโลยีธุรกิจดิจิทัล",
			"แผนกสามัญ-สัมพันธ์",
			"แผนกคหกรรมศาสตร์",
			"แผนกอาหารและโภชนาการ",
			"แผนกเทคโนโลยีแฟชั่นและเครื่องแต่งกาย",
		},
	},
	{
		Name: "งาน",
		Members: []string{
			"งานประกันคุณภาพ",
			"งานวัดผลและประเมินผล",
			"งานพัฒนาหลักสูตรการเรียนการสอน",
			"งานพัสดุ",
			"งานการเงิน",
			"งานบัญชี",
			"งานทะเบียน",
			"งานบุคลากร",
			"งานอาคารสถานที่",
			"งานประชาสัมพันธ์",
			"งานความร่วมมือ",
			"งานวางแผนและงบประมาณ",
			"งานวิจัย",
			"งานปกครอง",
			"งานครูที่ปรึกษา",
			"งานกิจกรรมนักเรียน",
			"งานโครงการพิเศษ",
			"งานอาชีวศึกษาระบบทวิภาคี",
			"งานวิทยบริการและห้องสมุด",
			"งานแนะแนวอาชีพและจัดหางาน",
			"งานส่งเสริมผลิตผลการค้าและประกอบธุรกิจ",
			"งานสวัสดิการนักเรียน นักศึกษา",
		},
	},
}

// ProblemTypes are the categories offered on the request form.
var ProblemTypes = []string{
	"คอมพิวเตอร์",
	"เครื่องพิมพ์",
	"เครือข่าย/อินเทอร์เน็ต",
	"โปรแกรม/ซอฟต์แวร์",
}

// SearchDepartments returns the groups whose members contain query,
// case-insensitively. Groups without a match are dropped; an empty query
// returns the whole directory.
func SearchDepartments(query string) []DepartmentGroup {
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]DepartmentGroup, 0, len(Departments))

	for _, group := range Departments {
		if query == "" {
			result = append(result, group)
			continue
		}
		var members []string
		for _, m := range group.Members {
			if strings.Contains(strings.ToLower(m), query) {
				members = append(members, m)
			}
		}
		if len(members) > 0 {
			result = append(result, DepartmentGroup{Name: group.Name, Members: members})
		}
	}
	return result
}
