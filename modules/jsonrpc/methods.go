package jsonrpc

import "strings"

// Candidate method names per operation, primary name first, historical
// aliases after. The chain is tried strictly in this order.
var (
	TimetableMethods  = []string{"getTimetable2017", "getTimetable", "getOwnTimetable", "getOwnTimetableForToday"}
	HomeWorkMethods   = []string{"getHomeWork2017", "getHomeWork"}
	ExamMethods       = []string{"getExams2017", "getExams"}
	AbsenceMethods    = []string{"getAbsences2017", "getStudentAbsences", "getOwnAbsences"}
	MessageMethods    = []string{"getMessagesOfDay2017", "getMessagesOfDay"}
	OfficeHourMethods = []string{"getOfficeHours2017", "getOfficeHours"}
	UserDataMethods   = []string{"getUserData2017", "getUserData"}

	KlassenMethods    = []string{"getKlassen", "getClasses"}
	TeacherMethods    = []string{"getTeachers"}
	SubjectMethods    = []string{"getSubjects"}
	RoomMethods       = []string{"getRooms"}
	StudentMethods    = []string{"getStudents"}
	HolidayMethods    = []string{"getHolidays"}
	SchoolYearMethods = []string{"getSchoolyears"}
	TimegridMethods   = []string{"getTimegridUnits"}
)

// LessonsMethod is the last-resort timetable source: lesson templates
// without scheduled occurrences.
const LessonsMethod = "getLessons"

// EnhancedMethods are probed one by one during capability negotiation.
var EnhancedMethods = []string{
	"getAppSharedSecret",
	"getUserData2017",
	"getTimetable2017",
	"getAbsences2017",
	"getExams2017",
	"getHomeWork2017",
	"getMessagesOfDay2017",
	"getOfficeHours2017",
}

// IsInternMethod reports whether the method lives on the 2017-era servlet
// and expects an auth block in its params.
func IsInternMethod(method string) bool {
	return method == "getAppSharedSecret" || strings.HasSuffix(method, "2017")
}
