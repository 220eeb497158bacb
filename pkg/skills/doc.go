// Package skills defines behavior profiles and the prefix router that selects them.
//
// Invariants:
// - A Router only references skills it was constructed with.
// - Route is pure: the same text always yields the same skill and cleaned text.
// - Only the first matching prefix applies; table order breaks ties.
//
// Usage:
//
//	router, _ := skills.NewRouter([]skills.Skill{skills.NewDocQA(), skills.NewGPUDiagnosis()}, skills.DocQAName, skills.DefaultRoutes()...)
//	skill, cleaned := router.Route("/gpu my GPU is overheating")
//	_ = skill // gpu_diagnosis
//	_ = cleaned // "my GPU is overheating"
package skills
